package files

import (
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/finploy/matchbatch"
)

// DateParamLayout is the layout of date job parameters.
const DateParamLayout = "2006-01-02"

var pathVar = regexp.MustCompile(`\{([^{}]+)\}`)

var dateTokens = strings.NewReplacer("yyyy", "2006", "yy", "06", "MM", "01", "dd", "02", "HH", "15", "mm", "04", "ss", "05")

// FilePath is a file name pattern. {name} is replaced by the job parameter name;
// {name,yyyyMMdd} parses the parameter as a date and formats it. A missing date
// parameter falls back to the job start time.
type FilePath struct {
	NamePattern string
}

func (f *FilePath) Format(execution *matchbatch.StepExecution) (string, error) {
	var params matchbatch.JobParams
	start := time.Now()
	if execution != nil && execution.JobExecution != nil {
		params = execution.JobExecution.JobParams
		if !execution.JobExecution.StartTime.IsZero() {
			start = execution.JobExecution.StartTime
		}
	}
	var ferr error
	out := pathVar.ReplaceAllStringFunc(f.NamePattern, func(m string) string {
		spec := strings.Split(m[1:len(m)-1], ",")
		name := strings.TrimSpace(spec[0])
		value := ""
		if params.Typed != nil {
			value = params.Str(name, "")
		}
		if len(spec) == 1 {
			if value == "" {
				ferr = errors.Errorf("job parameter %q required by %q is missing", name, f.NamePattern)
			}
			return value
		}
		t := start
		if value != "" {
			parsed, err := time.Parse(DateParamLayout, value)
			if err != nil {
				ferr = errors.Wrapf(err, "job parameter %q is not a date", name)
				return m
			}
			t = parsed
		}
		return t.Format(dateTokens.Replace(strings.TrimSpace(spec[1])))
	})
	if ferr != nil {
		return "", ferr
	}
	return out, nil
}
