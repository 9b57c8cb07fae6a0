package validate

import "fmt"

// TaskIDLister is the narrow surface CheckTaskIDCollisions needs from a
// Hub's device table, kept as an interface rather than a *hub.Hub
// parameter so this package never imports hub — hub.Attach calls into
// validate, and a reverse import would cycle.
type TaskIDLister interface {
	// TaskIDOwners returns every currently-advertised task id mapped to
	// the address of the device that owns it.
	TaskIDOwners() map[string]string
}

// CheckTaskIDCollisions enforces that no task id a device about to attach
// at addr advertises is already owned by a different attached device —
// Hub.ExecuteTask's first-match-wins routing only makes sense if task ids
// are unique hub-wide.
func CheckTaskIDCollisions(existing TaskIDLister, addr string, taskIDs []string) error {
	owners := existing.TaskIDOwners()
	for _, id := range taskIDs {
		if owner, ok := owners[id]; ok && owner != addr {
			return fmt.Errorf("task id %q is already owned by %s", id, owner)
		}
	}
	return nil
}
