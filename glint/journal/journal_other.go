//go:build !windows

package journal

import (
	"context"
	"fmt"
)

type stubHarvester struct{}

func newPlatformHarvester() Harvester {
	return stubHarvester{}
}

func (stubHarvester) Harvest(_ context.Context, rootPath string) ([]Record, JournalInfo, error) {
	return nil, JournalInfo{}, fmt.Errorf("%w: no change journal on this platform (volume %s)", ErrJournalUnavailable, rootPath)
}
