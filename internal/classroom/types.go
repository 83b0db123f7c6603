package classroom

// Course states accepted by the courses.list courseStates filter.
const (
	CourseStateActive      = "ACTIVE"
	CourseStateArchived    = "ARCHIVED"
	CourseStateProvisioned = "PROVISIONED"
	CourseStateDeclined    = "DECLINED"
	CourseStateSuspended   = "SUSPENDED"
)

// Publication states for announcements and course work materials.
const (
	StatePublished = "PUBLISHED"
	StateDraft     = "DRAFT"
)

// ownerMe makes the authenticated principal the owner of a new course.
const ownerMe = "me"

// Course is a Classroom course. Identity is ID; Name is a display string.
type Course struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Section            string `json:"section,omitempty"`
	Room               string `json:"room,omitempty"`
	Description        string `json:"description,omitempty"`
	DescriptionHeading string `json:"descriptionHeading,omitempty"`
	OwnerID            string `json:"ownerId,omitempty"`
	State              string `json:"courseState,omitempty"`
	EnrollmentCode     string `json:"enrollmentCode,omitempty"`
	AlternateLink      string `json:"alternateLink,omitempty"`
}

// NewCourse is the body of a courses.create call.
type NewCourse struct {
	Name               string `json:"name"`
	Section            string `json:"section,omitempty"`
	Room               string `json:"room,omitempty"`
	Description        string `json:"description,omitempty"`
	DescriptionHeading string `json:"descriptionHeading,omitempty"`
}

// Topic groups course work inside a course.
type Topic struct {
	ID       string `json:"topicId"`
	CourseID string `json:"courseId"`
	Name     string `json:"name"`
}

// Student is a roster entry, flattened from the API's nested profile.
type Student struct {
	UserID   string
	CourseID string
	Email    string
	FullName string
}

// UserProfile is the authenticated principal.
type UserProfile struct {
	ID       string
	Email    string
	FullName string
}

// Material is an attachment on an announcement or course work material.
// Exactly one field should be set; the value is sent to the API verbatim.
type Material struct {
	Link         *Link         `json:"link,omitempty"`
	DriveFile    *DriveFile    `json:"driveFile,omitempty"`
	YouTubeVideo *YouTubeVideo `json:"youtubeVideo,omitempty"`
	Form         *Form         `json:"form,omitempty"`
}

// Link is a URL attachment.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// DriveFile references a Drive file by ID.
type DriveFile struct {
	DriveFile struct {
		ID    string `json:"id"`
		Title string `json:"title,omitempty"`
	} `json:"driveFile"`
	ShareMode string `json:"shareMode,omitempty"`
}

// YouTubeVideo references a video by ID.
type YouTubeVideo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Form references a Google Form by its URL.
type Form struct {
	FormURL string `json:"formUrl"`
	Title   string `json:"title,omitempty"`
}

// LinkMaterial returns a Material attaching url.
func LinkMaterial(url string) Material {
	return Material{Link: &Link{URL: url}}
}

// DriveFileMaterial returns a Material attaching the Drive file id.
func DriveFileMaterial(id string) Material {
	df := &DriveFile{ShareMode: "VIEW"}
	df.DriveFile.ID = id

	return Material{DriveFile: df}
}

// YouTubeMaterial returns a Material attaching the video id.
func YouTubeMaterial(id string) Material {
	return Material{YouTubeVideo: &YouTubeVideo{ID: id}}
}

// Announcement is a stream post in a course.
type Announcement struct {
	ID            string `json:"id"`
	CourseID      string `json:"courseId"`
	Text          string `json:"text"`
	State         string `json:"state"`
	AlternateLink string `json:"alternateLink,omitempty"`
}

// NewAnnouncement is the body of an announcements.create call. Materials
// are omitted from the request when empty.
type NewAnnouncement struct {
	Text         string     `json:"text"`
	State        string     `json:"state"`
	AssigneeMode string     `json:"assigneeMode"`
	Materials    []Material `json:"materials,omitempty"`
}

// CourseWorkMaterial is a material post in a course.
type CourseWorkMaterial struct {
	ID            string `json:"id"`
	CourseID      string `json:"courseId"`
	Title         string `json:"title"`
	TopicID       string `json:"topicId,omitempty"`
	State         string `json:"state"`
	AlternateLink string `json:"alternateLink,omitempty"`
}

// NewMaterial is the body of a courseWorkMaterials.create call.
// Materials has no omitempty: the API call always carries the field,
// as an explicit empty array when there is nothing to attach.
type NewMaterial struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	TopicID     string     `json:"topicId,omitempty"`
	Materials   []Material `json:"materials"`
}
