package predicate

import "os"

func currentUID() uint32 { return uint32(os.Getuid()) }
func currentGID() uint32 { return uint32(os.Getgid()) }
