package customdata

// Role field IDs. These values are shared with the scene files that tag
// objects, matching the host's custom data tutorial convention.
const (
	RoleQuadcopter  uint32 = 0
	RoleMotor0      uint32 = 1
	RoleMotor1      uint32 = 2
	RoleMotor2      uint32 = 3
	RoleMotor3      uint32 = 4
	RoleCameraDown  uint32 = 5
	RoleCameraFront uint32 = 6
	RoleBody        uint32 = 7
	RoleTarget      uint32 = 8
)

// RoleName returns a human-readable label for a role field ID.
func RoleName(id uint32) string {
	switch id {
	case RoleQuadcopter:
		return "quadcopter"
	case RoleMotor0:
		return "motor0"
	case RoleMotor1:
		return "motor1"
	case RoleMotor2:
		return "motor2"
	case RoleMotor3:
		return "motor3"
	case RoleCameraDown:
		return "cameraDown"
	case RoleCameraFront:
		return "cameraFront"
	case RoleBody:
		return "body"
	case RoleTarget:
		return "target"
	default:
		return "unknown"
	}
}
