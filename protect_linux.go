//go:build linux

package dynlibutils

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// mapsRegion is one parsed line of /proc/self/maps.
type mapsRegion struct {
	start, end AddressValue
	perms      ProtectionFlags
	path       string
}

// readSelfMaps parses /proc/self/maps, resolving kstenerud-go-subvert's
// memprotect_posix.go getCurrentMemoryProtection TODO ("Parse
// /proc/self/maps... 559576822000-559576827000 r-xp ...").
func readSelfMaps() []mapsRegion {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil
	}
	defer f.Close()

	var regions []mapsRegion
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		rangeParts := strings.SplitN(fields[0], "-", 2)
		if len(rangeParts) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(rangeParts[0], 16, 64)
		end, err2 := strconv.ParseUint(rangeParts[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		perms := fields[1]
		var f ProtectionFlags
		if len(perms) >= 3 {
			if perms[0] == 'r' {
				f |= ProtRead
			}
			if perms[1] == 'w' {
				f |= ProtWrite
			}
			if perms[2] == 'x' {
				f |= ProtExec
			}
			if len(perms) >= 4 {
				switch perms[3] {
				case 's':
					f |= ProtShared
				case 'p':
					f |= ProtPrivate
				}
			}
		}
		if f&(ProtRead|ProtWrite|ProtExec) == 0 {
			f |= ProtNone
		}
		var path string
		if len(fields) >= 6 {
			path = fields[5]
		}
		regions = append(regions, mapsRegion{
			start: AddressValue(start),
			end:   AddressValue(end),
			perms: f,
			path:  path,
		})
	}
	return regions
}

func currentProtection(addr AddressValue) ProtectionFlags {
	for _, r := range readSelfMaps() {
		if addr >= r.start && addr < r.end {
			return r.perms
		}
	}
	return ProtUnset
}

// regionContaining clamps [addr, addr+n) to the mapped, readable region
// it falls in, returning the usable length (0 if addr isn't mapped
// readable at all).
func regionContaining(addr AddressValue, n uintptr) uintptr {
	for _, r := range readSelfMaps() {
		if addr >= r.start && addr < r.end && r.perms.Has(ProtRead) {
			avail := uintptr(r.end.Delta(addr))
			if avail < n {
				return avail
			}
			return n
		}
	}
	return 0
}

func (osAccessor) Copy(dst, src AddressValue, n uintptr) (ok bool) {
	avail := regionContaining(src, n)
	if avail == 0 {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	copy(unsafeSlice(dst, avail), unsafeSlice(src, avail))
	return avail == n
}

func (osAccessor) SafeRead(dst, src AddressValue, n uintptr) (ok bool, nRead uintptr) {
	avail := regionContaining(src, n)
	if avail == 0 {
		return false, 0
	}
	defer func() {
		if recover() != nil {
			ok, nRead = false, 0
		}
	}()
	copy(unsafeSlice(dst, avail), unsafeSlice(src, avail))
	return true, avail
}

func (osAccessor) SafeWrite(dst, src AddressValue, n uintptr) (ok bool, nWritten uintptr) {
	avail := n
	for _, r := range readSelfMaps() {
		if dst >= r.start && dst < r.end && r.perms.Has(ProtWrite) {
			if a := uintptr(r.end.Delta(dst)); a < avail {
				avail = a
			}
			defer func() {
				if recover() != nil {
					ok, nWritten = false, 0
				}
			}()
			copy(unsafeSlice(dst, avail), unsafeSlice(src, avail))
			return true, avail
		}
	}
	return false, 0
}
