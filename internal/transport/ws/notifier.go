package ws

import (
	"context"
	"fmt"

	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/realtime"
)

// RelayTables lists the tables whose changes the hub forwards.
var RelayTables = []string{domain.TableProfiles, domain.TableMessages, domain.TableBlocks}

// Relay subscribes hub to every relayed table of feed. The returned func
// stops relaying.
func Relay(ctx context.Context, feed realtime.Feed, hub *Hub) (func(), error) {
	subs := make([]realtime.Subscription, 0, len(RelayTables))
	stop := func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}

	for _, table := range RelayTables {
		sub, err := feed.Subscribe(ctx, table, hub.Publish)
		if err != nil {
			stop()
			return nil, fmt.Errorf("relaying %s: %w", table, err)
		}
		subs = append(subs, sub)
	}
	return stop, nil
}
