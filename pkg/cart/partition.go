package cart

import (
	"strings"

	"github.com/handicraft/storefront/pkg/identity"
)

// PartitionKey names one persisted cart: "user:<id>" for a signed-in user,
// "guest" otherwise.
type PartitionKey string

// Guest is the partition used while nobody is signed in.
const Guest PartitionKey = "guest"

const userPrefix = "user:"

// PartitionFor returns the partition of id, or Guest for nil.
func PartitionFor(id *identity.Identity) PartitionKey {
	if id == nil || id.ID == "" {
		return Guest
	}
	return PartitionKey(userPrefix + id.ID)
}

// UserID returns the user id of a user partition.
func (k PartitionKey) UserID() (string, bool) {
	return strings.CutPrefix(string(k), userPrefix)
}

// StorageKey is the keyed-storage name of the partition's blob:
// "cart_<userId>" or "cart_guest". A user whose id is "guest" gets
// "cart_user_guest" so it never shares the guest blob.
func (k PartitionKey) StorageKey() string {
	if id, ok := k.UserID(); ok {
		if id == string(Guest) {
			return "cart_user_guest"
		}
		return "cart_" + id
	}
	return "cart_" + string(Guest)
}
