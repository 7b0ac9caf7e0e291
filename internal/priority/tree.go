// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import "sync"

// ShareTree is the hierarchical accounts/users tree (C1, §4.1). Only the
// decay loop and the accountant it drives mutate usage_*/tickets/
// active_seqno; everything else only reads (§5).
type ShareTree struct {
	mu   sync.RWMutex
	root *Association
	byID map[AssociationID]*Association
}

// NewShareTree builds a tree from a flat list of associations whose
// ParentID/Parent fields are not yet wired, linking children under their
// parents and returning the single root (the association with no parent).
func NewShareTree(assocs []*Association) *ShareTree {
	t := &ShareTree{byID: make(map[AssociationID]*Association, len(assocs))}
	for _, a := range assocs {
		t.byID[a.ID] = a
		a.Children = nil
	}
	var root *Association
	for _, a := range assocs {
		if parent, ok := t.byID[a.ParentID]; ok && a.ID != a.ParentID {
			a.Parent = parent
			parent.Children = append(parent.Children, a)
		} else {
			root = a
		}
	}
	t.root = root
	if root != nil {
		root.SharesNorm = 1.0
	}
	t.computeLevelShares(root)
	return t
}

// computeLevelShares sets LevelShares to the sum of sibling SharesRaw
// (non-USE_PARENT) at each level, matching the "level_shares" denominator
// used by SharesNorm normalization, and derives SharesNorm for every
// non-USE_PARENT node as shares_raw/level_shares times the parent chain
// (§8 invariant 3). USE_PARENT children are left at 0 here; SetAssocUsage
// inherits the parent's value for them at evaluation time.
func (t *ShareTree) computeLevelShares(node *Association) {
	if node == nil {
		return
	}
	var total int64
	for _, c := range node.Children {
		if !c.IsUseParent() {
			total += c.SharesRaw
		}
	}
	for _, c := range node.Children {
		c.LevelShares = float64(total)
		if !c.IsUseParent() && total > 0 {
			c.SharesNorm = (float64(c.SharesRaw) / float64(total)) * node.SharesNorm
		}
		t.computeLevelShares(c)
	}
}

// Root returns the tree's single root association.
func (t *ShareTree) Root() *Association {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Lookup returns the association with the given id, if present.
func (t *ShareTree) Lookup(id AssociationID) (*Association, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.byID[id]
	return a, ok
}

// SetAssocUsage computes usage_norm and usage_efctv for one association
// (§4.1), branching on the configured fair-share mode (§4.4). USE_PARENT
// children inherit shares_norm and usage_norm from the parent. usage_norm
// is clamped to 1.0.
//
// Ticket mode floors usage_efctv at MIN_USAGE_FACTOR·shares_raw/level_shares.
// Exponential mode instead propagates the parent's usage_efctv down the
// tree: usage_efctv(a) = usage_norm(a) + (usage_efctv(parent) -
// usage_norm(a))·shares_raw(a)/level_shares(a), with direct children of
// root (and USE_PARENT children) taking usage_efctv = usage_norm. This
// requires the parent's usage_efctv already be set, which holds under the
// top-down walk order of WalkSettingEffective.
func (t *ShareTree) SetAssocUsage(a *Association, ticketBased bool) {
	root := t.root
	if a.IsUseParent() && a.Parent != nil {
		a.SharesNorm = a.Parent.SharesNorm
		a.UsageNorm = a.Parent.UsageNorm
	} else if root != nil && root.UsageRaw > 0 {
		a.UsageNorm = a.UsageRaw / root.UsageRaw
	} else {
		a.UsageNorm = 0
	}
	if a.UsageNorm > 1.0 {
		a.UsageNorm = 1.0
	}

	shareRatio := 0.0
	if a.LevelShares > 0 && !a.IsUseParent() {
		shareRatio = float64(a.SharesRaw) / a.LevelShares
	}

	if ticketBased {
		floor := MinUsageFactor * shareRatio
		if a.UsageNorm > floor {
			a.UsageEfctv = a.UsageNorm
		} else {
			a.UsageEfctv = floor
		}
		return
	}

	if a.IsUseParent() || a.Parent == nil || a.Parent == root {
		a.UsageEfctv = a.UsageNorm
		return
	}
	a.UsageEfctv = a.UsageNorm + (a.Parent.UsageEfctv-a.UsageNorm)*shareRatio
}

// WalkSettingEffective walks depth-first from root's children. Account
// children get usage recomputed and recurse; user children are left
// UNCOMPUTED, to be filled in lazily on first job query (§4.1).
func (t *ShareTree) WalkSettingEffective(ticketBased bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.root == nil {
		return
	}
	t.walkChildren(t.root.Children, ticketBased)
}

func (t *ShareTree) walkChildren(children []*Association, ticketBased bool) {
	for _, a := range children {
		if a.Kind == KindUser {
			a.UsageEfctv = Uncomputed
			continue
		}
		t.SetAssocUsage(a, ticketBased)
		t.walkChildren(a.Children, ticketBased)
	}
}

// ResolveFairShareAssoc returns the association that actually governs a's
// fair-share factor: it walks up through USE_PARENT links to the nearest
// ancestor that owns its own shares (stopping at root), then lazily computes
// that association's usage_efctv if WalkSettingEffective left it UNCOMPUTED
// (true of every user leaf; §4.1). Callers read UsageEfctv/SharesNorm off
// the returned association, not off a directly.
func (t *ShareTree) ResolveFairShareAssoc(a *Association, ticketBased bool) *Association {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs := a
	for fs.IsUseParent() && fs.Parent != nil && fs != t.root {
		fs = fs.Parent
	}
	if fs.UsageEfctv == Uncomputed {
		t.SetAssocUsage(fs, ticketBased)
	}
	return fs
}

// Associations returns every association in the tree, root included.
func (t *ShareTree) Associations() []*Association {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Association, 0, len(t.byID))
	for _, a := range t.byID {
		out = append(out, a)
	}
	return out
}
