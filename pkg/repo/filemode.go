package repo

import (
	"os"

	"github.com/odvcencio/cirrus/pkg/object"
)

// modeFromFileInfo maps any execute bit to the executable tree mode.
func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}
