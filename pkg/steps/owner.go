package steps

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// OwnerResolver maps owner and group names to numeric IDs.
// An empty name resolves to -1, which leaves that ID unchanged.
type OwnerResolver interface {
	Resolve(owner, group string) (uid, gid int, err error)
}

// SystemOwners resolves names through the host user database.
type SystemOwners struct{}

// Resolve looks up owner and group on the host.
func (SystemOwners) Resolve(owner, group string) (int, int, error) {
	uid, gid := -1, -1
	if owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to look up user %q: %w", owner, err)
		}
		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return 0, 0, fmt.Errorf("user %q has non-numeric uid %q", owner, u.Uid)
		}
	}
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to look up group %q: %w", group, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return 0, 0, fmt.Errorf("group %q has non-numeric gid %q", group, g.Gid)
		}
	}
	return uid, gid, nil
}

// ownerMatches reports whether info is owned by uid:gid. An ID of -1 matches
// anything.
func ownerMatches(info os.FileInfo, uid, gid int) bool {
	fileUID, fileGID, ok := fileOwner(info)
	if !ok {
		return true
	}
	if uid >= 0 && fileUID != uid {
		return false
	}
	if gid >= 0 && fileGID != gid {
		return false
	}
	return true
}

func ownerString(owner, group string) string {
	if owner == "" && group == "" {
		return ""
	}
	return owner + ":" + group
}
