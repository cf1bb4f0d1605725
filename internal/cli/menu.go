package cli

import (
	"context"

	"looma/internal/promptchannel"
	"looma/internal/savestate"
)

// offerSave reproduces the "Save State" arm of runtime.rs's main_menu
// loop, stripped of the menu's other arms (Load/Reload/Quit), which all
// depend on the TUI's mid-run "pause" signal — an external-collaborator
// concept spec.md names but leaves out of scope ("terminal UI
// internals"). Without a pause signal this CLI has no execution point to
// resume into after a Load, so this runs once after the program's final
// state is known, giving the operator a chance to persist it to a slot
// before the process exits; Store.Load itself is still fully implemented
// and covered directly by internal/savestate's tests.
func offerSave(ctx context.Context, prompt promptchannel.Channel, store *savestate.Store, state map[string]any) error {
	slots := savestate.CollectSlots(store.SaveStates)
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = s.Label
	}

	choice, err := prompt.UserChoice(ctx, "Save current state to which slot?", labels)
	if err != nil {
		if err == promptchannel.ErrCancelled {
			return nil
		}
		return err
	}

	idx, ok := promptchannel.ResolveChoice(labels, choice)
	if !ok {
		return nil
	}
	slot := slots[idx].Key

	defaultLabel := slots[idx].Label
	if defaultLabel == savestate.EmptyLabel {
		defaultLabel = ""
	}
	label, err := prompt.UserInput(ctx, "What do you want to call this save state?\n> ")
	if err != nil {
		if err == promptchannel.ErrCancelled {
			return nil
		}
		return err
	}
	if label == "" {
		label = defaultLabel
	}

	return store.Save(slot, label, state)
}
