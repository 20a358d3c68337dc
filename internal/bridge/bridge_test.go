package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/testsupport"
)

func quietConn(h bridge.Host, opts ...bridge.Option) *bridge.Conn {
	return bridge.New(h, append([]bridge.Option{bridge.WithLogger(observability.Discard())}, opts...)...)
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes a valid result", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		fake.Reply("get_photos_from_library", contract.Photos{testsupport.Photo("a", "a.jpg")})

		photos, err := bridge.Invoke(ctx, quietConn(fake), contract.GetPhotosFromLibrary, contract.Empty{})

		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, photos.IDs())
		assert.JSONEq(t, `{}`, string(fake.Calls("get_photos_from_library")[0].Args))
	})

	t.Run("host failure is a transport failure", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		boom := errors.New("disk on fire")
		fake.Fail("clear_library", boom)

		_, err := bridge.Invoke(ctx, quietConn(fake), contract.ClearLibrary, contract.Empty{})

		require.Error(t, err)
		assert.True(t, bridge.IsTransportFailure(err))
		assert.False(t, bridge.IsUnexpectedData(err))
		assert.ErrorIs(t, err, boom)

		var ie *bridge.InvokeError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "clear_library", ie.Command)
	})

	t.Run("invalid result is unexpected data", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		fake.ReplyRaw("get_photos_from_library", []byte(`[{"id":1}]`))

		_, err := bridge.Invoke(ctx, quietConn(fake), contract.GetPhotosFromLibrary, contract.Empty{})

		assert.True(t, bridge.IsUnexpectedData(err))
		var verr *contract.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "[0].id", verr.Path)
	})

	t.Run("a host that never answers times out", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		fake.Handle("clear_library", func(context.Context, []byte) ([]byte, error) {
			select {} // ignores its context
		})

		start := time.Now()
		_, err := bridge.Invoke(ctx, quietConn(fake, bridge.WithTimeout(20*time.Millisecond)), contract.ClearLibrary, contract.Empty{})

		assert.True(t, bridge.IsTransportFailure(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("concurrent invocations are independent", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		release := make(chan struct{})
		fake.Block("get_photos_from_library", release, contract.Photos{})
		fake.Fail("clear_library", errors.New("nope"))
		conn := quietConn(fake)

		var wg sync.WaitGroup
		var slowErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, slowErr = bridge.Invoke(ctx, conn, contract.GetPhotosFromLibrary, contract.Empty{})
		}()

		_, err := bridge.Invoke(ctx, conn, contract.ClearLibrary, contract.Empty{})
		assert.Error(t, err)

		close(release)
		wg.Wait()
		assert.NoError(t, slowErr)
	})

	t.Run("unregistered command panics", func(t *testing.T) {
		var rogue contract.Command[contract.Empty, contract.Empty]
		assert.Panics(t, func() {
			_, _ = bridge.Invoke(ctx, testsupport.NewFakeHost(), rogue, contract.Empty{})
		})
	})
}

func TestConnMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	metrics, err := observability.NewBridgeMetricsFor(provider)
	require.NoError(t, err)

	fake := testsupport.NewFakeHost()
	fake.Reply("clear_library", contract.Empty{})
	fake.Fail("get_photos_from_library", errors.New("disk on fire"))
	fake.ReplyRaw("analyze_image_metadata", []byte(`42`))
	conn := quietConn(fake, bridge.WithMetrics(metrics))

	_, err = bridge.Invoke(ctx, conn, contract.ClearLibrary, contract.Empty{})
	require.NoError(t, err)
	_, err = bridge.Invoke(ctx, conn, contract.GetPhotosFromLibrary, contract.Empty{})
	require.Error(t, err)
	_, err = bridge.Invoke(ctx, conn, contract.AnalyzeImageMetadata, contract.PathArgs{Path: "/x.jpg"})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(3), counts["picksy.bridge.invocations"])
	assert.Equal(t, int64(2), counts["picksy.bridge.errors"])
}

func TestListen(t *testing.T) {
	t.Run("delivers decoded payloads in order", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		scope := bridge.NewScope(context.Background())
		defer scope.Close()

		var got [][]string
		_, err := bridge.Listen(scope, quietConn(fake), contract.SetLibrary, func(s contract.LibrarySnapshot) {
			got = append(got, s.Photos.IDs())
		})
		require.NoError(t, err)

		fake.Push("SetLibrary", testsupport.Snapshot(testsupport.Photo("a", "a.jpg")))
		fake.Push("SetLibrary", testsupport.Snapshot(testsupport.Photo("b", "b.jpg")))

		assert.Equal(t, [][]string{{"a"}, {"b"}}, got)
	})

	t.Run("malformed payloads are dropped and reported", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		scope := bridge.NewScope(context.Background())
		defer scope.Close()

		var delivered int
		var reported []error
		_, err := bridge.Listen(scope, quietConn(fake), contract.SetLibrary,
			func(contract.LibrarySnapshot) { delivered++ },
			bridge.OnValidationError(func(err error) { reported = append(reported, err) }),
		)
		require.NoError(t, err)

		fake.PushRaw("SetLibrary", []byte(`{"photos":"nope"}`))
		fake.Push("SetLibrary", testsupport.Snapshot())

		assert.Equal(t, 1, delivered)
		require.Len(t, reported, 1)
		var verr *contract.ValidationError
		assert.ErrorAs(t, reported[0], &verr)
	})

	t.Run("scope close unsubscribes and stops delivery", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		conn := quietConn(fake)
		scope := bridge.NewScope(context.Background())

		var delivered int
		sub, err := bridge.Listen(scope, conn, contract.Presence, func(contract.PresencePayload) { delivered++ })
		require.NoError(t, err)
		assert.Equal(t, 1, fake.Subscribers("Presence"))

		require.NoError(t, scope.Close())
		fake.PushRaw("Presence", []byte(`{"local_peer":{"peer_key":"k","device_name":"d"},"remote_peers":[]}`))

		assert.Zero(t, delivered)
		assert.False(t, sub.Active())
		assert.Equal(t, 0, fake.Subscribers("Presence"))
		assert.Equal(t, 1, fake.Unsubscribes("Presence"))
	})

	t.Run("concurrent release unsubscribes exactly once", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		scope := bridge.NewScope(context.Background())
		sub, err := bridge.Listen(scope, quietConn(fake), contract.EditImages, func(contract.Photos) {})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = sub.Release()
			}()
		}
		_ = scope.Close()
		wg.Wait()

		assert.Equal(t, 1, fake.Unsubscribes("edit-images"))
	})

	t.Run("a host that never confirms the subscription times out", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		never := make(chan struct{})
		fake.HoldSubscribe("SetLibrary", never)
		scope := bridge.NewScope(context.Background())
		defer scope.Close()

		start := time.Now()
		_, err := bridge.Listen(scope, quietConn(fake, bridge.WithTimeout(50*time.Millisecond)), contract.SetLibrary,
			func(contract.LibrarySnapshot) {})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Zero(t, fake.Subscribers("SetLibrary"))
	})

	t.Run("a slow confirmation within the timeout succeeds", func(t *testing.T) {
		fake := testsupport.NewFakeHost()
		release := make(chan struct{})
		fake.HoldSubscribe("SetLibrary", release)
		scope := bridge.NewScope(context.Background())
		defer scope.Close()

		time.AfterFunc(20*time.Millisecond, func() { close(release) })
		_, err := bridge.Listen(scope, quietConn(fake, bridge.WithTimeout(time.Second)), contract.SetLibrary,
			func(contract.LibrarySnapshot) {})

		require.NoError(t, err)
		assert.Equal(t, 1, fake.Subscribers("SetLibrary"))
	})

	t.Run("listening on a closed scope fails", func(t *testing.T) {
		scope := bridge.NewScope(context.Background())
		require.NoError(t, scope.Close())

		_, err := bridge.Listen(scope, testsupport.NewFakeHost(), contract.SetLibrary, func(contract.LibrarySnapshot) {})
		assert.ErrorIs(t, err, bridge.ErrScopeClosed)
	})
}

func TestScope(t *testing.T) {
	t.Run("runs finalizers last first and only once", func(t *testing.T) {
		scope := bridge.NewScope(context.Background())
		var order []int
		for i := 1; i <= 3; i++ {
			i := i
			require.NoError(t, scope.Defer(func() error {
				order = append(order, i)
				return nil
			}))
		}

		require.NoError(t, scope.Close())
		require.NoError(t, scope.Close())

		assert.Equal(t, []int{3, 2, 1}, order)
		assert.Error(t, scope.Context().Err())
	})

	t.Run("joins finalizer errors", func(t *testing.T) {
		scope := bridge.NewScope(context.Background())
		first := errors.New("first")
		second := errors.New("second")
		_ = scope.Defer(func() error { return first })
		_ = scope.Defer(func() error { return second })

		err := scope.Close()

		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("defer after close runs immediately", func(t *testing.T) {
		scope := bridge.NewScope(context.Background())
		_ = scope.Close()

		ran := false
		err := scope.Defer(func() error { ran = true; return nil })

		assert.True(t, ran)
		assert.ErrorIs(t, err, bridge.ErrScopeClosed)
	})
}

func TestEmit(t *testing.T) {
	fake := testsupport.NewFakeHost()
	scope := bridge.NewScope(context.Background())
	defer scope.Close()

	var received contract.Photos
	_, err := bridge.Listen(scope, quietConn(fake), contract.TransportImages, func(p contract.Photos) { received = p })
	require.NoError(t, err)

	err = bridge.Emit(context.Background(), fake, contract.TransportImages, contract.Photos{testsupport.Photo("x", "x.jpg")})

	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, received.IDs())
	assert.Len(t, fake.Emitted("transport-images"), 1)
}
