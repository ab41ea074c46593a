package assoc

import (
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestResolverRoundRobin(t *testing.T) {
	primary, _, _ := sqlmock.New()
	replica1, _, _ := sqlmock.New()
	replica2, _, _ := sqlmock.New()
	defer primary.Close()
	defer replica1.Close()
	defer replica2.Close()

	r := NewDBResolver(
		WithPrimary(primary),
		WithReplicas(replica1, replica2),
	)

	if r.Primary() != primary {
		t.Error("Primary should return the primary connection")
	}
	if !r.HasReplicas() {
		t.Error("HasReplicas = false")
	}

	first := r.Replica()
	second := r.Replica()
	if first == second {
		t.Error("round-robin should alternate between two replicas")
	}
	if first != replica1 && first != replica2 {
		t.Error("Replica returned an unknown connection")
	}
}

func TestResolverFallsBackToPrimary(t *testing.T) {
	primary, _, _ := sqlmock.New()
	defer primary.Close()

	r := NewDBResolver(WithPrimary(primary))
	if r.Replica() != primary {
		t.Error("without replicas, reads should fall back to the primary")
	}
}

func TestResolverReplicaAt(t *testing.T) {
	a, _, _ := sqlmock.New()
	b, _, _ := sqlmock.New()
	defer a.Close()
	defer b.Close()

	r := NewDBResolver(WithReplicas(a, b))
	if r.ReplicaAt(1) != b {
		t.Error("ReplicaAt(1) should return the second replica")
	}
	if r.ReplicaAt(5) != nil || r.ReplicaAt(-1) != nil {
		t.Error("out-of-range index should return nil")
	}
}

func TestRandomLoadBalancer(t *testing.T) {
	a, _, _ := sqlmock.New()
	defer a.Close()

	lb := &RandomLoadBalancer{}
	if lb.Next(nil) != nil {
		t.Error("empty pool should yield nil")
	}
	if lb.Next([]*sql.DB{a}) != a {
		t.Error("single replica pool should yield it")
	}
}
