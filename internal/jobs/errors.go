package jobs

import "errors"

// ErrStoreUnavailable marks any I/O failure while talking to the backing
// tabular service. Store methods never swallow it; callers decide whether
// the enclosing cycle can continue.
var ErrStoreUnavailable = errors.New("store unavailable")
