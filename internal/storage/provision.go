package storage

import (
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/internal/remote"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
)

// EnsureDirectory makes sure dir exists on sess, creating missing segments one at a
// time. The session's working directory is restored before returning, whatever the
// outcome.
//
// MKD failures are tolerated since another client may have created the segment first.
// A segment that still cannot be entered afterwards fails the call with ErrDirectory
// instead of carrying on in the wrong directory.
func EnsureDirectory(sess remote.Session, dir string, log *zap.Logger) (err error) {
	if dir == "" || dir == "." {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	pwd, err := sess.CurrentDir()
	if err != nil {
		return apperrors.ErrDirectory.WithMessage("storage: query working directory").WithInternal(err)
	}
	defer func() {
		if restoreErr := sess.ChangeDir(pwd); restoreErr != nil {
			err = multierr.Append(err, apperrors.ErrDirectory.
				WithMessage("storage: restore working directory %s", pwd).
				WithInternal(restoreErr))
		}
	}()

	if strings.HasPrefix(dir, "/") {
		if err := sess.ChangeDir("/"); err != nil {
			return apperrors.ErrDirectory.WithMessage("storage: enter server root").WithInternal(err)
		}
	}

	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		if sess.ChangeDir(segment) == nil {
			continue
		}
		if mkErr := sess.MakeDir(segment); mkErr != nil {
			log.Debug("mkdir failed, probing again",
				zap.String("dir", dir),
				zap.String("segment", segment),
				zap.Error(mkErr),
			)
			monitoring.RecordBestEffortFailure("mkdir")
		}
		if cdErr := sess.ChangeDir(segment); cdErr != nil {
			return apperrors.ErrDirectory.
				WithMessage("storage: cannot enter %q while provisioning %s", segment, dir).
				WithInternal(cdErr)
		}
	}
	return nil
}
