package noshow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PenaltyKind string

const (
	KindCreditLoss PenaltyKind = "credit_loss"
	KindFee        PenaltyKind = "fee"
	KindSuspension PenaltyKind = "suspension"
)

var ErrInvalidPolicy = errors.New("invalid no-show policy")

// Penalty is one of CreditLoss, Fee or Suspension. Each variant carries only
// the fields its kind needs.
type Penalty interface {
	Kind() PenaltyKind
	Validate() error
	Describe() string
}

type CreditLoss struct {
	Credits int `json:"credits"`
}

func (CreditLoss) Kind() PenaltyKind { return KindCreditLoss }

func (p CreditLoss) Validate() error {
	if p.Credits <= 0 {
		return fmt.Errorf("%w: credits must be positive", ErrInvalidPolicy)
	}
	return nil
}

func (p CreditLoss) Describe() string {
	if p.Credits == 1 {
		return "1 class credit deducted"
	}
	return fmt.Sprintf("%d class credits deducted", p.Credits)
}

type Fee struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (Fee) Kind() PenaltyKind { return KindFee }

func (p Fee) Validate() error {
	if p.AmountCents <= 0 {
		return fmt.Errorf("%w: fee amount must be positive", ErrInvalidPolicy)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPolicy)
	}
	return nil
}

func (p Fee) Describe() string {
	return fmt.Sprintf("%d.%02d %s fee charged", p.AmountCents/100, p.AmountCents%100, strings.ToUpper(p.Currency))
}

type Suspension struct {
	Days int `json:"days"`
}

func (Suspension) Kind() PenaltyKind { return KindSuspension }

func (p Suspension) Validate() error {
	if p.Days <= 0 {
		return fmt.Errorf("%w: suspension days must be positive", ErrInvalidPolicy)
	}
	return nil
}

func (p Suspension) Describe() string {
	return fmt.Sprintf("booking suspended for %d days", p.Days)
}

// Policy is an organization's no-show configuration.
type Policy struct {
	Enabled      bool
	GraceMinutes int
	Penalty      Penalty
}

func DefaultPolicy(graceMinutes int) Policy {
	return Policy{
		Enabled:      false,
		GraceMinutes: graceMinutes,
		Penalty:      CreditLoss{Credits: 1},
	}
}

func (p Policy) Validate() error {
	if p.GraceMinutes < 0 {
		return fmt.Errorf("%w: grace minutes must not be negative", ErrInvalidPolicy)
	}
	if p.Penalty == nil {
		return fmt.Errorf("%w: penalty is required", ErrInvalidPolicy)
	}
	return p.Penalty.Validate()
}

// graceUnset marks a decoded policy that carried no grace_minutes; the
// settings repository replaces it with the configured default.
const graceUnset = -1

func (p Policy) withDefaultGrace(minutes int) Policy {
	if p.GraceMinutes == graceUnset {
		p.GraceMinutes = minutes
	}
	return p
}

type policyJSON struct {
	Enabled      bool            `json:"enabled"`
	GraceMinutes *int            `json:"grace_minutes"`
	Penalty      json.RawMessage `json:"penalty"`
}

type kindOnly struct {
	Kind PenaltyKind `json:"kind"`
}

func (p Policy) MarshalJSON() ([]byte, error) {
	var penalty json.RawMessage
	if p.Penalty != nil {
		body, err := json.Marshal(p.Penalty)
		if err != nil {
			return nil, err
		}
		// Splice the discriminator into the variant object.
		kind, _ := json.Marshal(kindOnly{Kind: p.Penalty.Kind()})
		if string(body) == "{}" {
			penalty = kind
		} else {
			penalty = append(kind[:len(kind)-1], ',')
			penalty = append(penalty, body[1:]...)
		}
	}
	return json.Marshal(policyJSON{
		Enabled:      p.Enabled,
		GraceMinutes: &p.GraceMinutes,
		Penalty:      penalty,
	})
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var raw policyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Enabled = raw.Enabled
	p.GraceMinutes = graceUnset
	if raw.GraceMinutes != nil {
		p.GraceMinutes = *raw.GraceMinutes
	}
	p.Penalty = nil

	if len(raw.Penalty) == 0 || string(raw.Penalty) == "null" {
		return nil
	}

	penalty, err := decodePenalty(raw.Penalty)
	if err != nil {
		return err
	}
	p.Penalty = penalty
	return nil
}

func decodePenalty(data []byte) (Penalty, error) {
	var k kindOnly
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}

	switch k.Kind {
	case KindCreditLoss:
		var v CreditLoss
		err := json.Unmarshal(data, &v)
		return v, err
	case KindFee:
		var v Fee
		err := json.Unmarshal(data, &v)
		v.Currency = strings.ToUpper(v.Currency)
		return v, err
	case KindSuspension:
		var v Suspension
		err := json.Unmarshal(data, &v)
		return v, err
	default:
		return nil, fmt.Errorf("%w: unknown penalty kind %q", ErrInvalidPolicy, k.Kind)
	}
}
