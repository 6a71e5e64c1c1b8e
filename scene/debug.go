package scene

import (
	"fmt"
	"time"
)

type debugStats struct {
	buildTime    time.Duration
	submitTime   time.Duration
	commandCount int
}

func (s *Scene) debugLog(stats debugStats) {
	if !s.debug {
		return
	}
	logger.Debugf("frame %d: build %v | submit %v | total %v | commands %d",
		s.frame, stats.buildTime, stats.submitTime, stats.buildTime+stats.submitTime, stats.commandCount)
}

func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("scene debug: %s on disposed node %q", op, n.Name))
	}
}
