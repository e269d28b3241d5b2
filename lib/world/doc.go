// Package world defines the collaborators the client side synchronization code
// talks to: the local world (IWorld), user dialogs (IDialogs), durability
// checkpoints (ICheckpointer) and the faction lookup (IFactionResolver).
//
// MemoryWorld and ScoreFactionResolver are small ready-made implementations
// used by the command line clients.
package world
