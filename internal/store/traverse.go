package store

import "github.com/DeusData/codegraph/internal/model"

// NodeHop is a node reached during a BFS traversal, tagged with its
// distance from the root.
type NodeHop struct {
	Node *Node
	Hop  int
}

// TraverseResult is the outcome of a bounded breadth-first traversal.
type TraverseResult struct {
	Root    *Node
	Visited []*NodeHop
}

// BFS walks outward from startNodeID up to maxDepth hops, following edges of
// the given kinds (all kinds if empty) in the given direction ("outbound",
// "inbound", or "any"), and returns every node reached along with its hop
// distance. It backs Cypher's variable-length relationship patterns
// (e.g. -[:CALLS*1..3]->); traversal stops early once maxResults nodes have
// been visited.
func (s *Store) BFS(startNodeID string, direction string, edgeKinds []model.EdgeKind, maxDepth, maxResults int) (*TraverseResult, error) {
	root, err := s.FindNodeByID(startNodeID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return &TraverseResult{}, nil
	}

	visited := map[string]int{startNodeID: 0}
	result := &TraverseResult{Root: root, Visited: []*NodeHop{}}

	frontier := []string{startNodeID}
	for hop := 1; hop <= maxDepth && len(frontier) > 0 && len(result.Visited) < maxResults; hop++ {
		edgesByNode, err := s.fetchEdgesForBFS(frontier, edgeKinds, direction)
		if err != nil {
			return nil, err
		}

		var nextFrontier []string
		for _, nodeID := range frontier {
			for _, edge := range edgesByNode[nodeID] {
				neighbor := bfsNeighbor(edge, nodeID, direction)
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = hop
				nextFrontier = append(nextFrontier, neighbor)
			}
		}
		if len(nextFrontier) == 0 {
			break
		}

		nodeMap, err := s.FindNodesByIDs(nextFrontier)
		if err != nil {
			return nil, err
		}
		for _, id := range nextFrontier {
			if n, ok := nodeMap[id]; ok {
				result.Visited = append(result.Visited, &NodeHop{Node: n, Hop: hop})
				if len(result.Visited) >= maxResults {
					break
				}
			}
		}
		frontier = nextFrontier
	}

	return result, nil
}

func (s *Store) fetchEdgesForBFS(nodeIDs []string, edgeKinds []model.EdgeKind, direction string) (map[string][]*Edge, error) {
	switch direction {
	case "inbound":
		return s.FindEdgesByTargetIDs(nodeIDs, edgeKinds)
	case "any":
		out, err := s.FindEdgesBySourceIDs(nodeIDs, edgeKinds)
		if err != nil {
			return nil, err
		}
		in, err := s.FindEdgesByTargetIDs(nodeIDs, edgeKinds)
		if err != nil {
			return nil, err
		}
		for id, edges := range in {
			out[id] = append(out[id], edges...)
		}
		return out, nil
	default: // "outbound" or unspecified
		return s.FindEdgesBySourceIDs(nodeIDs, edgeKinds)
	}
}

func bfsNeighbor(edge *Edge, fromID string, direction string) string {
	switch direction {
	case "inbound":
		return edge.SourceID
	case "any":
		if edge.SourceID == fromID {
			return edge.TargetID
		}
		return edge.SourceID
	default:
		return edge.TargetID
	}
}
