package fsm

// ShouldCloseOnCollision implements the collision resolution rule of
// §4.3: when two TCP connections exist for the same (local, peer)
// router-ID pair, the side whose local router ID is numerically lower
// closes its own connection. The supervisor calls this once per
// colliding pair and, if it returns true, delivers OpenCollisionDump to
// the losing Machine; CollisionDetectEstablishedState on that Machine
// decides whether an already-Established session can still be dumped.
func ShouldCloseOnCollision(localRouterID, remoteRouterID uint32) bool {
	return localRouterID < remoteRouterID
}
