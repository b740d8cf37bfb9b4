package businessflow

import (
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
)

var (
	boostTransitionLocks = utils.NewKeyedMutex()
)

// lockBoost serializes lifecycle mutations of a single boost within this process
func lockBoost(boostUUID uuid.UUID) func() {
	return boostTransitionLocks.Lock(boostUUID.String())
}
