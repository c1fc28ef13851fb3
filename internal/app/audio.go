package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrAudioBusy = errors.New("audio relay saturated")

type AudioOptions struct {
	SameLanguage SameLanguage
	MaxInflight  int
	NotifySender bool
	Timeout      time.Duration
}

// ForwardResult summarizes one audio frame's fan-out.
type ForwardResult struct {
	Delivered int
	Raw       int
	Failed    []string
}

// AudioRelay fans audio frames out to listeners, translating once per target language.
type AudioRelay struct {
	tr     core.Translator
	opts   AudioOptions
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewAudioRelay(tr core.Translator, opts AudioOptions) *AudioRelay {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 32
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.SameLanguage == "" {
		opts.SameLanguage = SameLanguageSkip
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AudioRelay{
		tr:     tr,
		opts:   opts,
		sem:    make(chan struct{}, opts.MaxInflight),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit validates the sender and schedules the fan-out without blocking the caller.
// A saturated relay drops the frame and returns ErrAudioBusy.
func (a *AudioRelay) Submit(room *Room, from core.SessionID, audio json.RawMessage) error {
	plan, err := room.AudioPlan(from)
	if err != nil {
		return err
	}
	if len(plan.Listeners) == 0 {
		return nil
	}
	select {
	case a.sem <- struct{}{}:
	default:
		log.Warn().Str("module", "app.audio").Str("room", string(room.Code())).Str("sid", string(from)).Msg("audio frame dropped: relay saturated")
		return ErrAudioBusy
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.sem }()
		a.Forward(a.ctx, room, from, plan, audio)
	}()
	return nil
}

// Forward runs the fan-out for one frame synchronously.
func (a *AudioRelay) Forward(ctx context.Context, room *Room, from core.SessionID, plan AudioPlan, audio json.RawMessage) ForwardResult {
	var res ForwardResult
	groups := make(map[string][]core.SessionID)
	var raw []core.SessionID
	for _, l := range plan.Listeners {
		if strings.EqualFold(l.Language, plan.SourceLanguage) {
			switch a.opts.SameLanguage {
			case SameLanguageSkip:
				continue
			case SameLanguageRaw:
				raw = append(raw, l.SID)
				continue
			}
		}
		key := strings.ToLower(l.Language)
		groups[key] = append(groups[key], l.SID)
	}

	if len(raw) > 0 {
		res.Raw = room.Deliver(raw, core.EvTranslatedAudio, core.TranslatedAudio{
			FromUser:       plan.SpeakerName,
			FromUserID:     string(from),
			SourceLanguage: plan.SourceLanguage,
			TargetLanguage: plan.SourceLanguage,
			Audio:          audio,
			Translated:     false,
		})
	}
	if len(groups) == 0 {
		return res
	}

	langs := make([]string, 0, len(groups))
	for lang := range groups {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, lang := range langs {
		sids := groups[lang]
		target := a.languageOf(plan, sids[0], lang)
		g.Go(func() error {
			n, err := a.translateOne(ctx, room, from, plan, target, sids, audio)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, target)
				return nil
			}
			res.Delivered += n
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Failed)
	return res
}

// languageOf returns the listener's own spelling of the target tag.
func (a *AudioRelay) languageOf(plan AudioPlan, sid core.SessionID, fallback string) string {
	for _, l := range plan.Listeners {
		if l.SID == sid {
			return l.Language
		}
	}
	return fallback
}

func (a *AudioRelay) translateOne(ctx context.Context, room *Room, from core.SessionID, plan AudioPlan, target string, sids []core.SessionID, audio json.RawMessage) (int, error) {
	if a.tr == nil {
		return 0, core.ErrTranslatorDisabled
	}
	tctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	out, err := a.tr.Translate(tctx, core.TranslationRequest{
		RoomCode:       string(room.Code()),
		SpeakerID:      string(from),
		SourceLanguage: plan.SourceLanguage,
		TargetLanguage: target,
		Audio:          audio,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("module", "app.audio").
			Str("room", string(room.Code())).
			Str("sid", string(from)).
			Str("target", target).
			Msg("translation failed")
		if a.opts.NotifySender {
			room.Deliver([]core.SessionID{from}, core.EvTranslationError, core.TranslationError{
				Message:        "translation failed",
				TargetLanguage: target,
			})
		}
		return 0, err
	}
	n := room.Deliver(sids, core.EvTranslatedAudio, core.TranslatedAudio{
		FromUser:       plan.SpeakerName,
		FromUserID:     string(from),
		SourceLanguage: plan.SourceLanguage,
		TargetLanguage: target,
		Audio:          out.Audio,
		Translated:     true,
	})
	return n, nil
}

// Wait blocks until in-flight frames are done.
func (a *AudioRelay) Wait() { a.wg.Wait() }

// Close cancels in-flight translations and waits for them.
func (a *AudioRelay) Close() {
	a.cancel()
	a.wg.Wait()
}
