package serial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
)

// lenientInt accepts any JSON number and truncates the fraction.
type lenientInt int

func (n *lenientInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return fmt.Errorf("number %s out of range", data)
	}
	*n = lenientInt(math.Trunc(f))
	return nil
}

// lenientBool accepts true/false and numbers, where non-zero is true.
type lenientBool bool

func (b *lenientBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		return nil
	case "true":
		*b = true
		return nil
	case "false":
		*b = false
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("leadOff: %w", err)
	}
	*b = f != 0
	return nil
}

type deviceLine struct {
	HR      lenientInt  `json:"hr"`
	RR      lenientInt  `json:"rr"`
	Sweat   lenientInt  `json:"sweat"`
	LeadOff lenientBool `json:"leadOff"`
}

// decodeLine turns one device line into a reading. Missing fields default to
// zero, unknown fields are ignored.
func decodeLine(line string) (domain.Reading, error) {
	var d deviceLine
	if err := json.Unmarshal([]byte(line), &d); err != nil {
		return domain.Reading{}, fmt.Errorf("%w: %w", domain.ErrMalformedFrame, err)
	}
	return domain.Reading{
		HR:      int(d.HR),
		RR:      int(d.RR),
		Sweat:   int(d.Sweat),
		LeadOff: bool(d.LeadOff),
	}, nil
}
