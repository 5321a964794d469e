// Package grouper turns loose request items into prioritized submission batches.
package grouper

import (
	"sort"

	"transportagent/internal/model"
)

// Options controls batch construction
type Options struct {
	// MaxBatchSize caps the number of items in one batch; zero means no cap
	MaxBatchSize int
}

// Priority ranks a batch key; lower values are submitted first.
// GETDATA outranks every other program, and within a program the SAPI
// interface outranks the others.
func Priority(key model.BatchKey) int {
	programRank := 1
	if key.ProgramCode == model.ProgramGetData {
		programRank = 0
	}
	interfaceRank := 1
	if key.InterfaceCode == model.InterfaceSAPI {
		interfaceRank = 0
	}
	return programRank*2 + interfaceRank
}

// Group partitions items by their batch key and returns NEW batches in
// submission order. Items keep ascending ID order inside a batch.
func Group(items []model.RequestItem, opts Options) []model.Batch {
	groups := make(map[model.BatchKey][]model.RequestItem)
	for _, item := range items {
		key := item.Key()
		groups[key] = append(groups[key], item)
	}

	keys := make([]model.BatchKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return less(keys[i], keys[j])
	})

	var batches []model.Batch
	for _, key := range keys {
		members := groups[key]
		sort.Slice(members, func(i, j int) bool {
			return members[i].ID < members[j].ID
		})

		for _, chunk := range chunks(members, opts.MaxBatchSize) {
			batches = append(batches, model.Batch{
				Key:      key,
				Priority: Priority(key),
				Status:   model.BatchNew,
				Items:    chunk,
			})
		}
	}

	return batches
}

func less(a, b model.BatchKey) bool {
	if pa, pb := Priority(a), Priority(b); pa != pb {
		return pa < pb
	}
	if a.ProgramCode != b.ProgramCode {
		return a.ProgramCode < b.ProgramCode
	}
	if a.InterfaceCode != b.InterfaceCode {
		return a.InterfaceCode < b.InterfaceCode
	}
	if a.StartDate != b.StartDate {
		return a.StartDate < b.StartDate
	}
	if a.EndDate != b.EndDate {
		return a.EndDate < b.EndDate
	}
	return !a.ExclusivePricing && b.ExclusivePricing
}

func chunks(items []model.RequestItem, size int) [][]model.RequestItem {
	if size <= 0 || len(items) <= size {
		return [][]model.RequestItem{items}
	}

	var out [][]model.RequestItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
