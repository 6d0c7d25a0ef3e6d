// Package policy holds the pure lookup tables behind scheduling and escalation:
// risk class to maintenance frequency, and severity/priority to resolution windows.
// Nothing here touches storage or the clock.
package policy
