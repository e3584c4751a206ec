package build

import (
	"context"

	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
)

// stagePrepareDirs recreates the working directory and copies the skeleton
// into it. Both failures are fatal.
func stagePrepareDirs(_ context.Context, bs *buildState) error {
	if err := bs.ws.Prepare(); err != nil {
		return newFatalStageError(StagePrepareDirs,
			dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to prepare working directory").
				WithContext("path", bs.ws.TempDir()).Fatal().Build())
	}
	copied, err := bs.ws.CopySkeleton(bs.skeleton)
	if err != nil {
		return newFatalStageError(StagePrepareDirs,
			dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to copy skeleton").Fatal().Build())
	}
	bs.logger.Debug("Skeleton ready", logfields.Count(len(copied)))
	return nil
}
