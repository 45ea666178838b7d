// Package connectclient provides the configuration and resource-lifecycle
// layer shared by Connect RPC service clients.
//
// # Overview
//
// Every service client in a process needs the same two things from this
// layer: a retry timeout policy describing how per-attempt deadlines grow
// across retries of one call, and a background executor for call
// lifecycle work. Executors are expensive (a worker pool), so unrelated
// clients share one through a reference-counted pool: the executor is
// created when the first client acquires it and torn down exactly when
// the last client releases it.
//
// The pieces:
//
//   - ServiceOptions: the immutable aggregate built by a Builder
//   - RetryTimeoutPolicy: pure per-attempt timeout computation
//   - ExecutorFactory: obtains and releases executors, identified by kind
//   - SharedResourcePool: reference-counted holder for shared resources
//   - FactoryRegistry: resolves factory kinds from persisted configuration
//   - Channel: binds options to a live transport for connect clients
//
// # Basic Usage
//
// Build options, open a channel, and hand its client options to any
// connect-generated client:
//
//	builder := connectclient.NewBuilder().
//	    SetEndpoint("https://api.example.com")
//	if err := builder.SetInitialTimeout(10 * time.Second); err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := builder.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	channel, err := connectclient.NewChannel(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer channel.Close()
//
//	client := examplev1connect.NewExampleServiceClient(
//	    channel.HTTPClient(),
//	    channel.BaseURL(),
//	    channel.ClientOptions()...,
//	)
//
// Calls made through the client retry retryable failures under
// escalating per-attempt deadlines computed by the options' timeout
// policy. Channels optionally layer a circuit breaker (WithBreaker) and
// a local per-procedure throttle (WithRateLimit) outside the retry loop,
// so locally rejected calls never reach the network.
//
// # Executor sharing
//
// The default executor factory delegates to a process-wide
// SharedResourcePool, so every channel built from default options shares
// one scheduled executor:
//
//	factory := opts.ExecutorFactory()
//	executor, _ := factory.Get()
//	cancel, _ := executor.Schedule(time.Second, func() { refreshToken() })
//	cancel()                    // evicts the pending task
//	factory.Release(executor)   // last release tears the executor down
//
// Custom strategies implement ExecutorFactory and register a constructor
// under a stable kind name:
//
//	registry.Register("inline", func() (connectclient.ExecutorFactory, error) {
//	    return NewInlineFactory(), nil
//	})
//
// # Snapshots
//
// Options persist as a plain snapshot: the timeout triple in
// milliseconds plus the factory's kind name. Rehydrating re-resolves the
// kind through a registry; unknown kinds fail rather than silently
// changing strategy:
//
//	snap := opts.Snapshot()
//	_ = snap.WriteFile("service.yaml")
//
//	loaded, _ := connectclient.LoadSnapshot("service.yaml")
//	opts2, err := loaded.Rehydrate(registry, nil)
package connectclient
