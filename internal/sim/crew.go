package sim

var driverNames = []string{
	"Ravi Kumar", "Suresh Gowda", "Manjunath R", "Prakash Shetty", "Venkatesh N",
	"Mahesh Babu", "Ramesh Naik", "Shivakumar K", "Anil Reddy", "Naveen Rao",
	"Basavaraj Patil", "Kiran Hegde", "Lokesh M", "Girish S", "Harish Kamath",
}

var conductorNames = []string{
	"Lakshmi Devi", "Savitha B", "Raghu T", "Mohan Das", "Geetha K",
	"Chandrashekar P", "Asha Rani", "Srinivas V", "Pooja N", "Deepak J",
	"Kavitha S", "Nagaraj H", "Shobha R", "Vinay G", "Rekha M",
}
