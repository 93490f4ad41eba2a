package errors

import (
	"errors"
	"fmt"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Details    any    `json:"details,omitempty"`

	Chain []string `json:"chain,omitempty"`
}

// Dump flattens err for structured logging. Joined errors (multierr,
// errors.Join) are expanded depth first.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Details = te.Details()
	}

	d.Chain = chain(err, nil)
	return d
}

func chain(err error, acc []string) []string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		acc = append(acc, fmt.Sprintf("%T: %v", e, e))
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				acc = chain(inner, acc)
			}
			break
		}
	}
	return acc
}
