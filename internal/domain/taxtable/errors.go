package taxtable

import "errors"

var (
	ErrNoTaxTable            = errors.New("no tax table covers the requested date")
	ErrInvalidTaxTable       = errors.New("invalid tax table")
	ErrTaxTableVersionExists = errors.New("tax table version already published")
	ErrTaxTableNotLater      = errors.New("tax table must take effect after the latest published table")
)
