package pages

import "igmirror/pkg/errors"

// CodeFeed is the pull-based lazy sequence of post codes from a profile's
// feed, in platform order (newest first). It is logically infinite until the
// feed is exhausted and cannot be restarted: the delivered-count cursor only
// advances.
type CodeFeed struct {
	profile   *ProfilePage
	delivered int
	queue     []string
	done      bool
	err       error
}

// Next pulls the next post code. ok=false without an error means the feed is
// exhausted. Once Next has returned ok=false or an error, it keeps doing so.
func (f *CodeFeed) Next() (code string, ok bool, err error) {
	if f.err != nil {
		return "", false, f.err
	}
	if f.done {
		return "", false, nil
	}

	for {
		if len(f.queue) > 0 {
			code := f.queue[0]
			f.queue = f.queue[1:]
			return code, true, nil
		}

		codes, err := f.profile.visibleCodes()
		if err != nil {
			f.err = err
			return "", false, err
		}
		if len(codes) > f.delivered {
			f.queue = append(f.queue, codes[f.delivered:]...)
			f.delivered = len(codes)
			continue
		}

		grew, err := f.profile.scrollAndWait(len(codes))
		if err != nil {
			f.err = err
			return "", false, err
		}
		if grew {
			continue
		}

		loading, err := f.profile.loadingVisible()
		if err != nil {
			f.err = err
			return "", false, err
		}
		exhausted, err := stallOutcome(loading)
		if err != nil {
			f.err = err
			return "", false, err
		}
		if exhausted {
			f.done = true
			return "", false, nil
		}
	}
}

// stallOutcome decides what a timed-out scroll means. A quiet page is the
// legitimate end of the feed; a persistent loading placeholder with no new
// content is an inconsistent UI, not completion.
func stallOutcome(loadingVisible bool) (exhausted bool, err error) {
	if loadingVisible {
		return false, errors.New(errors.ErrorTypeProfilePage,
			"loading placeholder persisted past scroll timeout with no new content")
	}
	return true, nil
}
