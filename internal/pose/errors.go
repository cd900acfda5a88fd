package pose

import "errors"

// ErrTooFewCorrespondences is returned by Estimate when fewer than four
// correspondences are supplied.
var ErrTooFewCorrespondences = errors.New("pose needs at least 4 correspondences")
