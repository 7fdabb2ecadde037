package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads typed values from the environment and remembers every key
// whose value could not be parsed.
type envReader struct {
	invalid []string
}

func (r *envReader) str(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// BoolEnv semantics: strconv.ParseBool accepts 1,t,T,TRUE,true,True,0,f,F,FALSE,false,False.
func (r *envReader) bool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.invalid = append(r.invalid, k)
		return def
	}
	return b
}

func (r *envReader) int(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalid = append(r.invalid, k)
		return def
	}
	return n
}

// duration accepts Go durations ("90s", "10m") and bare seconds ("600").
func (r *envReader) duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.invalid = append(r.invalid, k)
		return def
	}
	return d
}
