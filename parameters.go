package matchbatch

import (
	"crypto/md5"
	"encoding/json"
	"fmt"

	"github.com/karlseguin/typed"
)

// JobParams are the parameters a job execution was started with.
type JobParams struct {
	typed.Typed
}

// ParseJobParams parses a JSON object; an empty string yields empty params.
func ParseJobParams(params string) (JobParams, error) {
	if len(params) == 0 {
		return JobParams{Typed: typed.Typed{}}, nil
	}
	t, err := typed.JsonString(params)
	if err != nil {
		return JobParams{}, NewBatchError(ErrCodeConfig, "parse job params:%v failed", params, err)
	}
	return JobParams{Typed: t}, nil
}

func (p *JobParams) Set(k string, v any) *JobParams {
	if p.Typed == nil {
		p.Typed = typed.Typed{}
	}
	p.Typed[k] = v
	return p
}

// Str returns the string param k or def.
func (p JobParams) Str(k string, def string) string {
	if v, ok := p.Typed.StringIf(k); ok && v != "" {
		return v
	}
	return def
}

// Int returns the int param k or def.
func (p JobParams) Int(k string, def int) int {
	if v, ok := p.Typed.IntIf(k); ok {
		return v
	}
	return def
}

// Float returns the float param k or def.
func (p JobParams) Float(k string, def float64) float64 {
	if v, ok := p.Typed.FloatIf(k); ok {
		return v
	}
	return def
}

// Flag returns the bool param k or def.
func (p JobParams) Flag(k string, def bool) bool {
	if v, ok := p.Typed.BoolIf(k); ok {
		return v
	}
	return def
}

func (p JobParams) String() string {
	if len(p.Typed) == 0 {
		return "{}"
	}
	bs, err := json.Marshal(p.Typed)
	if err != nil {
		panic(err)
	}
	return string(bs)
}

func (p *JobParams) UnmarshalJSON(bytes []byte) error {
	return json.Unmarshal(bytes, &p.Typed)
}

func (p JobParams) MarshalJSON() ([]byte, error) {
	if p.Typed == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Typed)
}

// Footprint identifies a job instance: same job name plus same footprint is the same instance.
func (p JobParams) Footprint() string {
	b := md5.Sum([]byte(p.String()))
	return fmt.Sprintf("%x", b)
}
