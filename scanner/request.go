package scanner

import (
	"fmt"

	"sigscan/pattern"
	"sigscan/resolve"
)

// CandidateText is a candidate in authoring form.
type CandidateText struct {
	Pattern string
	Spec    resolve.Spec
}

// RequestError lists the candidates of one target that failed to compile.
type RequestError struct {
	Target string
	Errs   map[int]error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("target %s: %d of its candidates rejected", e.Target, len(e.Errs))
}

// Unwrap exposes the individual compile errors to errors.Is and errors.As.
func (e *RequestError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errs))
	for _, err := range e.Errs {
		errs = append(errs, err)
	}
	return errs
}

// NewRequest compiles candidate texts. A candidate that fails to compile is
// left out and reported in a *RequestError; the returned Request still
// holds every candidate that compiled, in the original order.
func NewRequest(target string, texts ...CandidateText) (Request, error) {
	req := Request{Target: target, Candidates: make([]Candidate, 0, len(texts))}
	var reqErr *RequestError

	for i, text := range texts {
		p, err := pattern.Compile(text.Pattern)
		if err != nil {
			if reqErr == nil {
				reqErr = &RequestError{Target: target, Errs: map[int]error{}}
			}
			reqErr.Errs[i] = err
			continue
		}
		req.Candidates = append(req.Candidates, Candidate{Pattern: p, Spec: text.Spec})
	}

	if reqErr != nil {
		return req, reqErr
	}
	return req, nil
}
