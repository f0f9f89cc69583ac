package models

import "strings"

// GroupSuffix marks a kinase group name in site enzyme lists.
const GroupSuffix = "_GROUP"

// Kinase is identified by name and points to its catalytic gene product.
type Kinase struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Protein *Protein `json:"-"`
}

// KinaseGroup is a named family of kinases.
type KinaseGroup struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Kinases []*Kinase `json:"-"`
}

// HasKinase reports whether k is already a member of the group.
func (g *KinaseGroup) HasKinase(k *Kinase) bool {
	for _, member := range g.Kinases {
		if member == k {
			return true
		}
	}
	return false
}

// SplitGroupName returns the group name for "NAME_GROUP" enzyme labels.
func SplitGroupName(label string) (string, bool) {
	if strings.HasSuffix(label, GroupSuffix) {
		return strings.TrimSuffix(label, GroupSuffix), true
	}
	return label, false
}

// Site is a post-translational modification site on a protein.
type Site struct {
	ID       int64          `json:"id"`
	Protein  *Protein       `json:"-"`
	Position int            `json:"position"`
	Residue  string         `json:"residue"`
	Type     string         `json:"type"`
	PMID     string         `json:"pmid"`
	Kinases  []*Kinase      `json:"-"`
	Groups   []*KinaseGroup `json:"-"`
}
