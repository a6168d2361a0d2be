package presence

import "github.com/google/wire"

var Set = wire.NewSet(NewTracker)
