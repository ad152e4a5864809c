package cli

import "errors"

var errNarrativeFailed = errors.New("narrative reported errors")
