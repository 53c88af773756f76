package pages

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"igmirror/pkg/browser"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
	"igmirror/pkg/models"
	"igmirror/pkg/parse"
)

// MediaItem is one extracted media record. Size carries the chosen responsive
// width for images and is zero for videos.
type MediaItem struct {
	Kind   models.MediaKind
	Source string
	Size   int
	Poster string
	Mime   string
}

// PostPage reads one post's detail screen.
type PostPage struct {
	session browser.Session
	code    string
	log     logger.Logger
}

// OpenPost navigates the session to the post permalink and returns its
// reader.
func OpenPost(session browser.Session, code string, log logger.Logger) (*PostPage, error) {
	if err := session.Navigate(fmt.Sprintf("%s/p/%s/", BaseURL, code)); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeSession, "navigating to post", err)
	}
	return &PostPage{session: session, code: code, log: log}, nil
}

// IsDeleted reports whether the platform says the post is gone. The caller
// deletes the local row and stops extracting.
func (p *PostPage) IsDeleted() (bool, error) {
	_, found, err := p.session.Find(browser.XPath(SelUnavailable))
	if err != nil {
		return false, errors.Wrap(errors.ErrorTypeSession, "checking post availability", err)
	}
	return found, nil
}

// CreatedAt parses the timestamp attribute on the canonical time element.
func (p *PostPage) CreatedAt() (time.Time, error) {
	el, found, err := p.session.Find(browser.XPath(SelPostTime))
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrorTypeSession, "locating time element", err)
	}
	if !found {
		return time.Time{}, errors.New(errors.ErrorTypeProfilePage, "time element missing from post")
	}
	stamp, ok, err := el.Attr("datetime")
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrorTypeSession, "reading datetime attribute", err)
	}
	if !ok {
		return time.Time{}, errors.New(errors.ErrorTypeParse, "time element has no datetime attribute")
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrorTypeParse, "parsing post timestamp", err)
	}
	return t, nil
}

// Popularity reads the engagement sentence and splits it into count and kind
// ("1,234 likes" -> 1234, "likes"). The sentence format is not guaranteed: an
// unparsable first token degrades to absent count and kind, never an error.
func (p *PostPage) Popularity() (count *int, kind string, err error) {
	el, found, err := p.session.Find(browser.XPath(SelEngagement))
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrorTypeSession, "locating engagement sentence", err)
	}
	if !found {
		return nil, "", nil
	}
	text, err := el.Text()
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrorTypeSession, "reading engagement sentence", err)
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, "", nil
	}
	n, perr := parse.Number(tokens[0])
	if perr != nil {
		p.log.DebugWithFields("engagement sentence not numeric", map[string]interface{}{
			"code": p.code,
			"text": text,
		})
		return nil, "", nil
	}
	if len(tokens) > 1 {
		kind = tokens[1]
	}
	return &n, kind, nil
}

// Description returns the caption: the text following the element that
// repeats the author's own username among the comment/caption list. A post
// without a caption returns ok=false; absence is normal.
func (p *PostPage) Description(author string) (string, bool, error) {
	items, err := p.session.FindAll(browser.XPath(SelCaptionItems))
	if err != nil {
		return "", false, errors.Wrap(errors.ErrorTypeSession, "collecting caption list", err)
	}
	for _, item := range items {
		user, found, err := item.Find(browser.XPath(SelCaptionUser))
		if err != nil {
			return "", false, errors.Wrap(errors.ErrorTypeSession, "reading caption username", err)
		}
		if !found {
			continue
		}
		name, err := user.Text()
		if err != nil {
			return "", false, errors.Wrap(errors.ErrorTypeSession, "reading caption username text", err)
		}
		if name != author {
			continue
		}
		text, found, err := item.Find(browser.XPath(SelCaptionText))
		if err != nil {
			return "", false, errors.Wrap(errors.ErrorTypeSession, "reading caption text", err)
		}
		if !found {
			continue
		}
		caption, err := text.Text()
		if err != nil {
			return "", false, errors.Wrap(errors.ErrorTypeSession, "reading caption text", err)
		}
		return caption, true, nil
	}
	return "", false, nil
}

// Location reads the header's location anchor: the numeric platform id from
// its link target and the visible text as the name. A post without a tagged
// location returns ok=false; absence is normal.
func (p *PostPage) Location() (code, name string, ok bool, err error) {
	anchor, found, err := p.session.Find(browser.XPath(SelLocationAnchor))
	if err != nil {
		return "", "", false, errors.Wrap(errors.ErrorTypeSession, "locating location anchor", err)
	}
	if !found {
		return "", "", false, nil
	}
	href, hasHref, err := anchor.Attr("href")
	if err != nil {
		return "", "", false, errors.Wrap(errors.ErrorTypeSession, "reading location href", err)
	}
	if !hasHref {
		return "", "", false, nil
	}
	code, matched := parse.LocationCode(href)
	if !matched {
		return "", "", false, nil
	}
	name, err = anchor.Text()
	if err != nil {
		return "", "", false, errors.Wrap(errors.ErrorTypeSession, "reading location name", err)
	}
	return code, name, true, nil
}

// Media extracts the post's media list: either a single video or an image
// carousel advanced via the "next" control until it disappears.
func (p *PostPage) Media() ([]MediaItem, error) {
	video, found, err := p.session.Find(browser.XPath(SelVideo))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeSession, "checking for video", err)
	}
	if found {
		item, err := p.readVideo(video)
		if err != nil {
			return nil, err
		}
		return []MediaItem{item}, nil
	}
	return p.readCarousel()
}

func (p *PostPage) readVideo(video browser.Element) (MediaItem, error) {
	src, _, err := video.Attr("src")
	if err != nil {
		return MediaItem{}, errors.Wrap(errors.ErrorTypeSession, "reading video source", err)
	}
	poster, _, err := video.Attr("poster")
	if err != nil {
		return MediaItem{}, errors.Wrap(errors.ErrorTypeSession, "reading video poster", err)
	}
	mime, _, err := video.Attr("type")
	if err != nil {
		return MediaItem{}, errors.Wrap(errors.ErrorTypeSession, "reading video mime type", err)
	}
	return MediaItem{
		Kind:   models.MediaKindVideo,
		Source: src,
		Poster: poster,
		Mime:   mime,
	}, nil
}

// readCarousel walks the slides, taking the highest-resolution responsive
// source from each, until the "next" control is absent. A single image post
// is a one-slide carousel without the control.
func (p *PostPage) readCarousel() ([]MediaItem, error) {
	var items []MediaItem
	for {
		img, found, err := p.session.Find(browser.XPath(SelSlideImage))
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeSession, "locating carousel slide", err)
		}
		if found {
			item, ok, err := p.readSlide(img)
			if err != nil {
				return nil, err
			}
			if ok {
				items = append(items, item)
			}
		}

		next, found, err := p.session.Find(browser.XPath(SelCarouselNext))
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeSession, "locating carousel next control", err)
		}
		if !found {
			return items, nil
		}
		if err := next.Click(); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeSession, "advancing carousel", err)
		}
	}
}

func (p *PostPage) readSlide(img browser.Element) (MediaItem, bool, error) {
	srcset, ok, err := img.Attr("srcset")
	if err != nil {
		return MediaItem{}, false, errors.Wrap(errors.ErrorTypeSession, "reading slide srcset", err)
	}
	if ok {
		if source, width, ok := largestSource(srcset); ok {
			return MediaItem{
				Kind:   models.MediaKindImage,
				Source: source,
				Size:   width,
			}, true, nil
		}
	}
	// No responsive source list; fall back to the plain src.
	src, ok, err := img.Attr("src")
	if err != nil {
		return MediaItem{}, false, errors.Wrap(errors.ErrorTypeSession, "reading slide src", err)
	}
	if !ok || src == "" {
		return MediaItem{}, false, nil
	}
	return MediaItem{Kind: models.MediaKindImage, Source: src}, true, nil
}

// largestSource picks the widest entry from a responsive source list like
// "https://cdn/a.jpg 640w,https://cdn/b.jpg 1080w".
func largestSource(srcset string) (source string, width int, ok bool) {
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		w := 0
		if len(fields) > 1 {
			w, _ = strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		}
		if !ok || w > width {
			source, width, ok = fields[0], w, true
		}
	}
	return source, width, ok
}
