package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Percent is a percentage in hundredths, so 1250 is 12.50%.
// It maps to a NUMERIC(5,2) column and to a JSON number.
type Percent int64

const PercentScale = 100

var ErrBadPercent = errors.New("percent must be a decimal with at most two fractional digits")

// ParsePercent reads "12.5", "12.50" or "12" without going through float64.
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 {
		return 0, ErrBadPercent
	}
	frac += strings.Repeat("0", 2-len(frac))
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrBadPercent
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, ErrBadPercent
	}
	p := Percent(w*PercentScale + f)
	if neg {
		p = -p
	}
	return p, nil
}

func (p Percent) String() string {
	sign := ""
	if p < 0 {
		sign, p = "-", -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/PercentScale, p%PercentScale)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	v, err := ParsePercent(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Percent) Value() (driver.Value, error) {
	return p.String(), nil
}

func (p *Percent) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		*p = Percent(v * PercentScale)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Percent", src)
	}
	v, err := ParsePercent(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
