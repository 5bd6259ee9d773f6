// Package identity resolves attached devices to their MAC address and
// human-assigned reference.
//
// Resolution is a single, timeout-bounded MAC read through the driver
// followed by a reverse lookup in the reference map:
//
//	read fails or no MAC      -> DeviceInfo{Handle}
//	MAC not in reference map  -> DeviceInfo{Handle, MAC}
//	MAC in reference map      -> DeviceInfo{Handle, MAC, Reference}
//
// Failures are logged and reported in the result, never retried.
package identity
