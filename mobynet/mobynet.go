// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// Network is a Docker network attached to a container, together with the DNS
// names of the other containers on this network.
type Network struct {
	Name  string   // network name, not necessarily unique.
	Peers []string // container names and aliases, sorted.
}

// ContainerNetns returns the filesystem path referencing the network
// namespace of the specified running container, such as "/proc/666/ns/net".
func ContainerNetns(ctx context.Context, moby client.APIClient, nameOrID string) (string, error) {
	details, err := moby.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return "", err
	}
	return netnsOf(details)
}

func netnsOf(details types.ContainerJSON) (string, error) {
	if details.State == nil || details.State.Pid == 0 {
		return "", fmt.Errorf("container %q is not running", strings.TrimPrefix(details.Name, "/"))
	}
	return fmt.Sprintf("/proc/%d/ns/net", details.State.Pid), nil
}

// ContainerPeers returns the Docker networks the specified container is
// attached to, together with the DNS names of the other containers on these
// networks, as well as the container's network namespace path. Pinging these
// names from inside the container tells which peers are actually reachable.
//
// Docker network names are not necessarily unique, so networks are inspected
// by their IDs.
func ContainerPeers(ctx context.Context, moby client.APIClient, nameOrID string) ([]Network, string, error) {
	details, err := moby.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return nil, "", err
	}
	netnsref, err := netnsOf(details)
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimPrefix(details.Name, "/") // Docker's legacy "/name"
	if details.NetworkSettings == nil {
		return nil, netnsref, nil
	}

	// Containers attached to multiple networks get inspected only once.
	inspected := map[string]types.ContainerJSON{}
	networks := make([]Network, 0, len(details.NetworkSettings.Networks))
	for netname, endpoint := range details.NetworkSettings.Networks {
		netdetails, err := moby.NetworkInspect(ctx, endpoint.NetworkID, types.NetworkInspectOptions{})
		if err != nil {
			return nil, "", err
		}
		// A service name might refer to multiple containers.
		names := map[string]struct{}{}
		for _, peer := range netdetails.Containers {
			if peer.Name == name {
				continue
			}
			peerdetails, ok := inspected[peer.Name]
			if !ok {
				peerdetails, err = moby.ContainerInspect(ctx, peer.Name)
				if err != nil {
					continue // gone in the meantime.
				}
				inspected[peer.Name] = peerdetails
			}
			names[peer.Name] = struct{}{}
			if peerdetails.NetworkSettings == nil {
				continue
			}
			if ep, ok := peerdetails.NetworkSettings.Networks[netname]; ok && ep != nil {
				for _, alias := range ep.Aliases {
					names[alias] = struct{}{}
				}
			}
		}
		if len(names) == 0 {
			continue
		}
		peers := make([]string, 0, len(names))
		for peer := range names {
			peers = append(peers, peer)
		}
		sort.Strings(peers)
		networks = append(networks, Network{Name: netname, Peers: peers})
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].Name < networks[j].Name })
	return networks, netnsref, nil
}

// PeerNames returns the distinct peer names across all networks, sorted.
func PeerNames(networks []Network) []string {
	names := map[string]struct{}{}
	for _, network := range networks {
		for _, peer := range network.Peers {
			names[peer] = struct{}{}
		}
	}
	peers := make([]string, 0, len(names))
	for peer := range names {
		peers = append(peers, peer)
	}
	sort.Strings(peers)
	return peers
}
