package predict

import (
	"fmt"
	"strings"
	"time"
)

// Model kinds accepted by Open.
const (
	KindLinear = "linear"
	KindHTTP   = "http"
	KindNone   = "none"
)

// Open returns a Loader for the configured model kind. Nothing is read or
// contacted until the loader runs.
func Open(kind, path, url string, timeout time.Duration) Loader {
	return func() (Model, error) {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case KindLinear:
			if path == "" {
				return nil, fmt.Errorf("%w: linear model path not set", ErrUnavailable)
			}
			return LoadLinearModel(path)
		case KindHTTP:
			if url == "" {
				return nil, fmt.Errorf("%w: model url not set", ErrUnavailable)
			}
			return NewHTTPModel(url, timeout), nil
		case KindNone, "":
			return nil, ErrUnavailable
		default:
			return nil, fmt.Errorf("unknown model kind %q", kind)
		}
	}
}
