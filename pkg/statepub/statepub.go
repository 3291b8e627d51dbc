// Package statepub exports observed interface state to Redis so other
// tools can read what the host looks like after a run.
package statepub

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// Table is the key prefix of every published hash.
const Table = "IFCONVERGE_STATE"

// Publisher writes interface records as `IFCONVERGE_STATE|<name>` hashes.
type Publisher struct {
	client *redis.Client
	db     int
}

// New connects to the Redis server at addr and database db.
func New(ctx context.Context, addr string, db int) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return &Publisher{client: client, db: db}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Key returns the Redis key of an interface.
func Key(name string) string {
	return Table + "|" + name
}

// Publish replaces the published state with records in one MULTI/EXEC
// transaction. Keys of interfaces not in records are deleted, and each
// record's hash is rewritten so stale fields do not survive.
func (p *Publisher) Publish(ctx context.Context, records []*netif.InterfaceRecord) error {
	existing, err := p.client.Keys(ctx, Table+"|*").Result()
	if err != nil {
		return fmt.Errorf("scanning %s keys: %w", Table, err)
	}

	keep := make(map[string]bool, len(records))
	for _, r := range records {
		keep[Key(r.Name)] = true
	}

	pipe := p.client.TxPipeline()
	var stale int
	for _, key := range existing {
		if !keep[key] {
			pipe.Del(ctx, key)
			stale++
		}
	}
	for _, r := range records {
		key := Key(r.Name)
		fields := Fields(r)
		args := make([]interface{}, 0, len(fields)*2)
		for k, v := range fields {
			args = append(args, k, v)
		}
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, args...)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("pipeline exec: %w", err)
	}
	util.WithField("db", p.db).Debugf("Published %d interfaces, removed %d", len(records), stale)
	return nil
}

// Fields renders a record as hash fields. Empty values are omitted except
// ipaddress, which is always present so readers can tell "no addresses"
// from "not published".
func Fields(r *netif.InterfaceRecord) map[string]string {
	f := map[string]string{
		"type":        string(r.Type),
		"admin_state": string(r.AdminState),
		"ipaddress":   strings.Join(r.IPAddresses, ","),
	}
	if r.MTU > 0 {
		f["mtu"] = strconv.Itoa(r.MTU)
	}
	if r.MAC != "" {
		f["mac"] = r.MAC
	}
	if r.Parent != "" {
		f["parent"] = r.Parent
	}
	if r.VLANID > 0 {
		f["vlanid"] = strconv.Itoa(r.VLANID)
	}
	if b := r.Bond; b != nil {
		for _, prop := range []netif.Property{
			netif.PropBondMode,
			netif.PropBondMiimon,
			netif.PropBondLACPRate,
			netif.PropBondXmitHashPolicy,
			netif.PropBondSlaves,
		} {
			f[string(prop)] = r.Value(prop)
		}
	}
	return f
}
