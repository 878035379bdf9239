package nbody

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups the error codes registered by this package
const Codespace = "nbody"

// Configuration errors are returned by Configure; the system is not created.
var (
	ErrNoBodies                = errorsmod.Register(Codespace, 2, "no bodies configured")
	ErrDuplicateBody           = errorsmod.Register(Codespace, 3, "duplicate body identifier")
	ErrNonPositiveMass         = errorsmod.Register(Codespace, 4, "mass must be positive")
	ErrNonPositiveRadius       = errorsmod.Register(Codespace, 5, "estimated radius must be positive")
	ErrMultipleReferenceFrames = errorsmod.Register(Codespace, 6, "more than one reference frame body")
	ErrUnknownBody             = errorsmod.Register(Codespace, 7, "unknown body")
	ErrCoincidentBodies        = errorsmod.Register(Codespace, 8, "bodies share the same position")
	ErrUnknownIntegrator       = errorsmod.Register(Codespace, 9, "unknown integrator")
	ErrInvalidPrecision        = errorsmod.Register(Codespace, 10, "invalid precision")
	ErrInvalidBody             = errorsmod.Register(Codespace, 11, "invalid body definition")
	ErrUnknownFrameMode        = errorsmod.Register(Codespace, 12, "unknown frame mode")
)

// ErrSingularity marks a zero separation or a zero-magnitude direction during
// a step. It is a logic error: the step is abandoned and state is unchanged.
var ErrSingularity = errorsmod.Register(Codespace, 20, "numeric singularity")
