// Command wavelift ingests one control-plane batch of media locators into the
// object store as converted audio, and inspects the local run history.
package main
