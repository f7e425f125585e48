// Package protocol defines the wire-level types of the Outpost envelope
// protocol: telemetry item kinds, the envelope codec, and DSN handling.
//
// It is a leaf package with no dependencies on the rest of the SDK.
package protocol

// Category is the kind of a telemetry item.
//
// It is the unit of buffering, priority scheduling and rate limiting.
// The server may rate limit individual categories or all of them at once.
type Category string

const (
	CategoryError       Category = "error"
	CategoryCheckIn     Category = "check_in"
	CategoryTransaction Category = "transaction"
	CategoryLog         Category = "log"

	// CategoryDefault is used for items that do not declare a more
	// specific category.
	CategoryDefault Category = "default"

	// CategoryGlobal is the rate limit scope covering every category.
	//
	// It is never the category of an item; it only appears as a key in
	// rate limit state. The empty string matches the wire encoding: a
	// rate limit group with no category list applies globally.
	CategoryGlobal Category = ""
)

func (c Category) String() string {
	if c == CategoryGlobal {
		return "global"
	}
	return string(c)
}
