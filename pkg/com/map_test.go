package com

import (
	"errors"
	"testing"
)

type client struct {
	id string
	n  int
}

func TestFind(t *testing.T) {
	m := NewMap[string, *client]()
	c := &client{id: "a"}
	m.Put(c.id, c)

	got, err := m.Find("a")
	if err != nil || got != c {
		t.Errorf("Find(a) = %v, %v", got, err)
	}
	if _, err := m.Find(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(empty) error = %v", err)
	}
	if _, err := m.Find("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(b) error = %v", err)
	}
	got.n = 100
	if fc, _ := m.Find("a"); fc.n != 100 {
		t.Errorf("not expected change, %v != 100", fc.n)
	}
}

func TestRemove(t *testing.T) {
	m := NewMap[string, int]()
	m.Put("a", 1)
	m.Remove("a")
	m.Remove("never")
	if m.Len() != 0 {
		t.Errorf("map has %v elements", m.Len())
	}
}

func TestPutIfAbsent(t *testing.T) {
	m := NewMap[string, int]()
	if v, ok := m.PutIfAbsent("a", 1); !ok || v != 1 {
		t.Errorf("first = %v, %v", v, ok)
	}
	if v, ok := m.PutIfAbsent("a", 2); ok || v != 1 {
		t.Errorf("second = %v, %v", v, ok)
	}
}

func TestForEachMayModify(t *testing.T) {
	m := NewMap[int, int]()
	for i := 1; i <= 5; i++ {
		m.Put(i, i)
	}
	sum := 0
	m.ForEach(func(v int) { sum += v; m.Remove(v) })
	if sum != 15 || m.Len() != 0 {
		t.Errorf("sum = %v, len = %v", sum, m.Len())
	}
	m.Put(1, 1)
	if got := m.Clear(); len(got) != 1 || m.Len() != 0 {
		t.Errorf("Clear() = %v", got)
	}
}

func TestRemoveIf(t *testing.T) {
	m := NewMap[string, *client]()
	a, b := &client{id: "a"}, &client{id: "b"}
	m.Put("k", a)

	if m.RemoveIf("k", func(v *client) bool { return v == b }) {
		t.Error("removed a foreign value")
	}
	if !m.RemoveIf("k", func(v *client) bool { return v == a }) || m.Len() != 0 {
		t.Error("value wasn't removed")
	}
	if m.RemoveIf("nope", func(*client) bool { return true }) {
		t.Error("removed a missing key")
	}
}
