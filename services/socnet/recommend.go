// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package socnet

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// recommendationDepth bounds the connecting paths that count toward a rank.
const recommendationDepth = 2

// RankedPerson is a recommendation candidate with the number of distinct
// FRIEND paths of length at most two connecting it to the source person.
type RankedPerson struct {
	Person Person
	Rank   int
}

// rankCandidates sorts by descending rank and keeps at most k entries.
// The order of equal ranks follows the input order.
func rankCandidates(candidates []RankedPerson, k int) []RankedPerson {
	if k <= 0 {
		return []RankedPerson{}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rank > candidates[j].Rank
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// RankedRecommendations returns up to k friend-of-friend candidates with
// their ranks.
//
// Description:
//
//	Takes the persons exactly two hops away, drops any direct friend, and
//	ranks each remaining candidate by the number of distinct FRIEND paths
//	of length at most two between p and the candidate. Everything is read
//	from one snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	k - Maximum number of results. Zero or negative yields none.
//
// Outputs:
//
//	[]RankedPerson - Candidates by non-increasing rank.
//	error - Non-nil on store failure.
//
// Limitations:
//
//	The path count is uncapped, so cost grows with the product of the
//	degrees along each candidate's paths.
func (p Person) RankedRecommendations(ctx context.Context, k int) ([]RankedPerson, error) {
	var candidates []RankedPerson
	err := p.net.view(ctx, "FriendRecommendation", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		friends, err := friendsAtDepth(ctx, tx, p.id, 1)
		if err != nil {
			return err
		}
		fof, err := friendsAtDepth(ctx, tx, p.id, 2)
		if err != nil {
			return err
		}

		isFriend := make(map[graphstore.NodeID]struct{}, len(friends))
		for _, id := range friends {
			isFriend[id] = struct{}{}
		}

		for _, id := range fof {
			if _, ok := isFriend[id]; ok || id == p.id {
				continue
			}
			paths, err := tx.FindAllPaths(ctx, p.id, id, EdgeFriend, recommendationDepth)
			if err != nil {
				return fmt.Errorf("rank candidate %d: %w", id, err)
			}
			candidates = append(candidates, RankedPerson{Person: p.net.Person(id), Rank: len(paths)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rankCandidates(candidates, k), nil
}

// FriendRecommendation returns up to k persons p may know, most connected
// first.
func (p Person) FriendRecommendation(ctx context.Context, k int) ([]Person, error) {
	ranked, err := p.RankedRecommendations(ctx, k)
	if err != nil {
		return nil, err
	}
	persons := make([]Person, len(ranked))
	for i, r := range ranked {
		persons[i] = r.Person
	}
	return persons, nil
}
