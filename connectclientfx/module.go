// Package connectclientfx integrates connect-client channels with fx
// applications.
package connectclientfx

import (
	"context"

	connectclient "github.com/example/connect-client-go"
	"go.uber.org/fx"
)

// ChannelModule creates an fx module that provides a channel built from
// opts. The channel's executor is released on fx.OnStop.
func ChannelModule(opts *connectclient.ServiceOptions, copts ...connectclient.ChannelOption) fx.Option {
	return fx.Module("connect-client",
		fx.Provide(func(lc fx.Lifecycle) (*connectclient.Channel, error) {
			channel, err := connectclient.NewChannel(opts, copts...)
			if err != nil {
				return nil, err
			}

			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return channel.Close()
				},
			})

			return channel, nil
		}),
	)
}

// ProvideExecutor exposes the channel's executor to the graph.
// Example:
//
//	fx.New(
//	    connectclientfx.ChannelModule(opts),
//	    connectclientfx.ProvideExecutor(),
//	    fx.Invoke(func(executor connectclient.Executor) {
//	        // Schedule background work
//	    }),
//	)
func ProvideExecutor() fx.Option {
	return fx.Provide(func(channel *connectclient.Channel) connectclient.Executor {
		return channel.Executor()
	})
}

// ProbeOnStart registers an fx.OnStart hook that probes the given
// procedure through the channel, failing startup when the service is
// unreachable.
func ProbeOnStart(procedure string) fx.Option {
	return fx.Invoke(func(lc fx.Lifecycle, channel *connectclient.Channel) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return channel.Probe(ctx, procedure)
			},
		})
	})
}
