package incremental

import "errors"

// ErrCycle indicates a computation that depends on its own result.
var ErrCycle = errors.New("incremental: dependency cycle")
