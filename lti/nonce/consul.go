package nonce

import (
	"context"
	"strconv"
	"time"

	consul "github.com/hashicorp/consul/api"
)

const consulKeyPrefix = "lti-nonce/"

// ConsulStore records nonces in the Consul KV store. Consul KV has no native
// TTL, so each entry's value is its expiry time and stale entries are
// overwritten on collision.
type ConsulStore struct {
	client *consul.Client
}

func NewConsulStore(address string) (*ConsulStore, error) {
	config := consul.DefaultConfig()
	if address != "" {
		config.Address = address
	}
	client, err := consul.NewClient(config)
	if err != nil {
		return nil, err
	}
	return &ConsulStore{client: client}, nil
}

func (s *ConsulStore) SeenBefore(_ context.Context, nonce string, now time.Time) (bool, error) {
	kv := s.client.KV()
	key := consulKeyPrefix + nonce
	value := []byte(strconv.FormatInt(now.Add(Window).Unix(), 10))

	// ModifyIndex 0 makes the CAS a create-if-absent.
	created, _, err := kv.CAS(&consul.KVPair{Key: key, Value: value, ModifyIndex: 0}, nil)
	if err != nil {
		return false, err
	}
	if created {
		return false, nil
	}

	pair, _, err := kv.Get(key, nil)
	if err != nil {
		return false, err
	}
	if pair != nil {
		expiry, err := strconv.ParseInt(string(pair.Value), 10, 64)
		if err == nil && now.Unix() < expiry {
			return true, nil
		}
	}

	// Entry existed but had expired (or was unreadable); take it over.
	_, err = kv.Put(&consul.KVPair{Key: key, Value: value}, nil)
	return false, err
}
