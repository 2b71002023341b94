/*
Package mobynet finds the network namespace of a Docker container, so that
pings can be sent from inside the container, as well as the DNS names of the
peer containers on the Docker networks the container is attached to.
*/
package mobynet
