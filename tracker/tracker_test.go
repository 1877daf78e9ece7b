package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"novytek/api/models"
)

func TestTrackPageViewRecordsVisit(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	tr, _ := newTestTracker(t, store, testOptions(), WithEventSink(sink))
	sess := tr.Sessions().Resolve("")

	env := homePage()
	env.URL = "https://novytek.fr/services?utm_source=facebook&utm_medium=cpc"
	env.Referrer = "https://l.facebook.com/"

	visitID, ok := tr.TrackPageView(context.Background(), sess, env)
	require.True(t, ok)
	assert.Equal(t, visitID, sess.VisitID())

	visits := store.Visits()
	require.Len(t, visits, 1)
	v := visits[0]
	assert.Equal(t, sess.ID, v.SessionID)
	assert.Equal(t, "facebook", v.Source)
	assert.Equal(t, DeviceDesktop, v.DeviceType)
	assert.Equal(t, "Chrome", v.Browser)
	assert.Equal(t, "Windows", v.OS)
	assert.Equal(t, 1400, v.ScreenWidth)
	require.NotNil(t, v.UTMMedium)
	assert.Equal(t, "cpc", *v.UTMMedium)
	assert.Nil(t, v.UTMCampaign)
	require.NotNil(t, v.IPAddress)
	assert.Equal(t, "203.0.113.7", *v.IPAddress)

	tr.Wait()
	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPageView, events[0].EventType)
	assert.Equal(t, "/services", events[0].PagePath)
	assert.NotEmpty(t, events[0].EventID)
}

func TestTrackPageViewFailureIsSilent(t *testing.T) {
	store := &fakeStore{insertVisitErr: errors.New("backend unavailable")}
	tr, _ := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")
	sess.SetVisitID("previous-page")

	visitID, ok := tr.TrackPageView(context.Background(), sess, homePage())
	assert.False(t, ok)
	assert.Empty(t, visitID)
	assert.Empty(t, sess.VisitID(), "a failed page view must not keep the previous visit")
	assert.Equal(t, 0, tr.views.len())
}

func TestConversionBeforeVisitIsRecordedWithoutLinkage(t *testing.T) {
	store := &fakeStore{}
	tr, _ := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")

	done := make(chan struct{})
	go func() {
		tr.TrackConversion(context.Background(), sess, homePage(), models.ConversionWhatsApp, "")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TrackConversion blocked the caller")
	}
	tr.Wait()

	conversions := store.Conversions()
	require.Len(t, conversions, 1)
	assert.Nil(t, conversions[0].VisitID)
	assert.Nil(t, conversions[0].ContactID)
	assert.Equal(t, models.ConversionWhatsApp, conversions[0].ConversionType)
	assert.Equal(t, SourceDirect, conversions[0].OriginalSource)
	assert.Empty(t, store.Updates(), "no visit to flag")
}

func TestConversionFlagsCurrentVisit(t *testing.T) {
	for _, ct := range models.ConversionTypes {
		t.Run(string(ct), func(t *testing.T) {
			store := &fakeStore{}
			tr, _ := newTestTracker(t, store, testOptions())
			sess := tr.Sessions().Resolve("")

			visitID, ok := tr.TrackPageView(context.Background(), sess, homePage())
			require.True(t, ok)

			tr.TrackConversion(context.Background(), sess, homePage(), ct, "contact-42")
			tr.Wait()

			var flagged []models.EngagementFlag
			for _, rec := range store.Updates() {
				if rec.visitID == visitID && rec.update.Flag != "" {
					flagged = append(flagged, rec.update.Flag)
				}
			}
			assert.Equal(t, []models.EngagementFlag{ct.Flag()}, flagged)

			conversions := store.Conversions()
			require.Len(t, conversions, 1)
			require.NotNil(t, conversions[0].VisitID)
			assert.Equal(t, visitID, *conversions[0].VisitID)
			require.NotNil(t, conversions[0].ContactID)
			assert.Equal(t, "contact-42", *conversions[0].ContactID)
		})
	}
}

func TestFirstTouchSurvivesNavigation(t *testing.T) {
	store := &fakeStore{}
	tr, _ := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")

	landing := homePage()
	landing.URL = "https://novytek.fr/?utm_source=instagram"
	_, ok := tr.TrackPageView(context.Background(), sess, landing)
	require.True(t, ok)

	next := homePage()
	next.URL = "https://novytek.fr/contact"
	next.Referrer = "https://novytek.fr/"
	_, ok = tr.TrackPageView(context.Background(), sess, next)
	require.True(t, ok)

	tr.TrackConversion(context.Background(), sess, next, models.ConversionEmail, "")
	tr.Wait()

	visits := store.Visits()
	require.Len(t, visits, 2)
	assert.Equal(t, SourceReferral, visits[1].Source, "the visit itself keeps its own source")

	conversions := store.Conversions()
	require.Len(t, conversions, 1)
	assert.Equal(t, "instagram", conversions[0].OriginalSource)
}

func TestConversionFailuresAreSwallowed(t *testing.T) {
	store := &fakeStore{updateErr: errors.New("boom"), conversionErr: errors.New("boom")}
	tr, _ := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")
	sess.SetVisitID("visit-1")

	assert.NotPanics(t, func() {
		tr.TrackConversion(context.Background(), sess, homePage(), models.ConversionPhone, "")
		tr.Wait()
	})
	assert.Empty(t, store.Conversions())
}

func TestUnknownConversionTypeIsIgnored(t *testing.T) {
	store := &fakeStore{}
	tr, _ := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")

	tr.TrackConversion(context.Background(), sess, homePage(), models.ConversionType("fax"), "")
	tr.Wait()
	assert.Empty(t, store.Conversions())
}

func TestShutdownEndsOpenPageViews(t *testing.T) {
	store := &fakeStore{}
	tr, clock := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")

	_, ok := tr.TrackPageView(context.Background(), sess, homePage())
	require.True(t, ok)
	clock.Advance(42 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))

	updates := store.Updates()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].update.TimeOnPage)
	assert.Equal(t, 42, *updates[0].update.TimeOnPage)
	assert.Equal(t, homePage().URL, *updates[0].update.ExitPage)
}

func TestFirstTouchSurvivesSessionEviction(t *testing.T) {
	store := &fakeStore{}
	tr, clock := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")

	landing := homePage()
	landing.URL = "https://novytek.fr/?utm_source=instagram"
	_, ok := tr.TrackPageView(context.Background(), sess, landing)
	require.True(t, ok)
	carried := sess.FirstTouch()
	require.Equal(t, "instagram", carried)

	clock.Advance(tr.opts.SessionTTL + time.Minute)
	require.Equal(t, 1, tr.Sessions().Sweep())

	back := tr.Sessions().Resolve(sess.ID)
	require.NotSame(t, sess, back)
	assert.Equal(t, sess.ID, back.ID)
	back.RestoreFirstTouch(carried)

	later := homePage()
	later.URL = "https://novytek.fr/contact"
	later.Referrer = "https://www.google.com/"
	_, ok = tr.TrackPageView(context.Background(), back, later)
	require.True(t, ok)

	tr.TrackConversion(context.Background(), back, later, models.ConversionWhatsApp, "")
	tr.Wait()

	conversions := store.Conversions()
	require.Len(t, conversions, 1)
	assert.Equal(t, "instagram", conversions[0].OriginalSource)
}

func TestEveryEndedPageViewReportsLeave(t *testing.T) {
	tests := []struct {
		name     string
		end      func(tr *Tracker, clock *fakeClock, visitID string)
		wantPath string
		wantMs   int64
	}{
		{
			name: "leave beacon",
			end: func(tr *Tracker, clock *fakeClock, visitID string) {
				clock.Advance(15 * time.Second)
				require.True(t, tr.Leave(visitID, "https://novytek.fr/contact"))
			},
			wantPath: "/contact",
			wantMs:   15000,
		},
		{
			name: "idle expiry",
			end: func(tr *Tracker, clock *fakeClock, visitID string) {
				clock.Advance(20 * time.Second)
				require.True(t, tr.Ping(visitID))
				clock.Advance(tr.opts.IdleTimeout + time.Second)
				require.Equal(t, 1, tr.views.expireIdle(clock.Now(), tr.opts.IdleTimeout))
			},
			wantPath: "/services",
			wantMs:   20000,
		},
		{
			name: "shutdown",
			end: func(_ *Tracker, clock *fakeClock, _ string) {
				clock.Advance(42 * time.Second)
			},
			wantPath: "/services",
			wantMs:   42000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			tr, clock := newTestTracker(t, &fakeStore{}, testOptions(), WithEventSink(sink))
			sess := tr.Sessions().Resolve("")

			env := homePage()
			env.URL = "https://novytek.fr/services"
			visitID, ok := tr.TrackPageView(context.Background(), sess, env)
			require.True(t, ok)

			tt.end(tr, clock, visitID)
			require.NoError(t, tr.Shutdown(context.Background()))

			var leaves []models.TrackingEvent
			for _, e := range sink.Events() {
				if e.EventType == models.EventPageLeave {
					leaves = append(leaves, e)
				}
			}
			require.Len(t, leaves, 1)
			assert.Equal(t, sess.ID, leaves[0].SessionID)
			assert.Equal(t, visitID, leaves[0].VisitID)
			assert.Equal(t, tt.wantPath, leaves[0].PagePath)
			assert.Equal(t, tt.wantMs, leaves[0].DurationMs)
		})
	}
}

func TestShutdownRefusesNewWork(t *testing.T) {
	store := &fakeStore{}
	tr, _ := newTestTracker(t, store, testOptions())
	sess := tr.Sessions().Resolve("")
	sess.SetVisitID("visit-1")

	require.NoError(t, tr.Shutdown(context.Background()))

	_, ok := tr.TrackPageView(context.Background(), sess, homePage())
	assert.False(t, ok)
	tr.TrackConversion(context.Background(), sess, homePage(), models.ConversionPhone, "")
	tr.Wait()

	assert.Empty(t, store.Visits())
	assert.Empty(t, store.Conversions())
	assert.Equal(t, 0, tr.views.len())
}

func TestClosedRegistryRejectsPageViews(t *testing.T) {
	r := newRegistry()
	r.close(time.Now())

	p := newPageView("visit-1", "s", "https://novytek.fr/", testOptions(), &fakeStore{}, nil, zap.NewNop(), nopMetrics{}, time.Now)
	assert.False(t, r.add(context.Background(), p))
	assert.Equal(t, 0, r.len())
	require.NoError(t, r.wait(context.Background()))
}
