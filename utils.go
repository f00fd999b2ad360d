package main

import "sort"

// intersection returns the elements of s1 that also appear in s2, in s1 order.
func intersection(s1, s2 []string) (res []string) {
	hash := make(map[string]struct{})

	for _, e := range s2 {
		hash[e] = struct{}{}
	}
	for _, e := range s1 {
		if _, ok := hash[e]; ok {
			res = append(res, e)
		}
	}
	return
}

// difference returns the sorted members of a that are not in b.
func difference(a, b map[string]struct{}) []string {
	res := []string{}
	for e := range a {
		if _, ok := b[e]; !ok {
			res = append(res, e)
		}
	}
	sort.Strings(res)
	return res
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dedupe drops repeated entries, keeping the first occurrence.
func dedupe(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	res := make([]string, 0, len(s))
	for _, e := range s {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		res = append(res, e)
	}
	return res
}
