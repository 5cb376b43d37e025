package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/gfpath"
)

// GfPath converts a native path back to gfpath form, folding the user's
// home directory into "~".
func (h *Local) GfPath(native string) gfpath.Path {
	s := filepath.ToSlash(native)
	if home, err := os.UserHomeDir(); err == nil {
		hp := filepath.ToSlash(home)
		if s == hp {
			s = "~"
		} else if strings.HasPrefix(s, hp+"/") {
			s = "~" + s[len(hp):]
		}
	}
	return gfpath.New(s)
}

// ChooseFolder implements Host. The GUI picker is used when available
// unless the CLI picker was asked for; the CLI picker lists the current
// folder, takes an autocomplete-backed sub-path, and re-lists until the
// user accepts with a bare Enter.
func (h *Local) ChooseFolder(start gfpath.Path) (gfpath.Path, bool) {
	if start.IsZero() {
		start = gfpath.New("~")
	}

	if !h.opts.PreferCLIFileChooser {
		if chosen, err := guiChooseFolder(h.LocalPath(start)); err == nil && chosen != "" {
			return h.GfPath(chosen), true
		}
		// Picker missing or dismissed; the CLI picker still works.
	}
	return h.chooseFolderCLI(start)
}

func (h *Local) chooseFolderCLI(start gfpath.Path) (gfpath.Path, bool) {
	current := start
	for {
		entries, err := h.ListFolder(current)
		if err != nil {
			h.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Error listing %s: %v", current, err)))
			if current.String() == "~" {
				return gfpath.Path{}, false
			}
			current = gfpath.New("~")
			continue
		}

		h.ch.Output(channel.NewMsg().Bright(current.String()))
		var subfolders []string
		for _, e := range entries {
			if e.Kind == KindFolder {
				h.ch.Output(channel.NewMsg().Print("    " + e.Name + "/"))
				subfolders = append(subfolders, e.Name)
			} else {
				h.ch.Output(channel.NewMsg().Print("    " + e.Name))
			}
		}

		reply, err := h.ch.Input("Folder path (Enter to choose this folder): ", append(subfolders, ".."))
		if err != nil {
			return gfpath.Path{}, false
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return current, true
		}

		next := current.Append(reply)
		if !h.FolderExists(next) {
			h.ch.Output(channel.NewMsg().Error(fmt.Sprintf("Not a folder: %s", next)))
			continue
		}
		current = next
	}
}
