package tenant

import "errors"

var ErrScope = errors.New("tenant scope is not bound")
